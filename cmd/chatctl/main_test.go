package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-llm/internal/service"
)

func TestTokenCommand(t *testing.T) {
	cmd := newRootCmd(cliConfig{JWTSecret: "secret"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--owner", "alice"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	claims, err := service.NewJWTService("secret", time.Hour).ParseAccessToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "alice" {
		t.Fatalf("unexpected owner %q", claims.UserID)
	}
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	cmd := newRootCmd(cliConfig{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestReadEvents(t *testing.T) {
	stream := "event:status\ndata:{\"type\":\"fetch\",\"status\":\"pending\"}\n\n" +
		"event:text\ndata:{\"text\":\"Hola\"}\n\n" +
		"event:finish\ndata:{\"messageId\":\"a1\"}\n\n"
	var names []string
	err := readEvents(strings.NewReader(stream), func(ev streamEvent) error {
		names = append(names, ev.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if strings.Join(names, ",") != "status,text,finish" {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestChatLoop(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:text\ndata:{\"text\":\"Hola\"}\n\n")
		fmt.Fprint(w, "event:annotation\ndata:{\"type\":\"info\",\"model\":\"gpt-4o\",\"waiting_time\":12,\"is_thinking\":false}\n\n")
		fmt.Fprint(w, "event:finish\ndata:{\"messageId\":\"a1\"}\n\n")
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := newAPIClient(srv.URL, "tok")
	opts := chatOptions{SessionID: "s1", ModelID: "gpt-4o", Search: true}
	if err := chatLoop(context.Background(), c, opts, strings.NewReader("hola\n/exit\n"), &out); err != nil {
		t.Fatalf("chat loop: %v", err)
	}
	if !strings.Contains(out.String(), "Hola") || !strings.Contains(out.String(), "gpt-4o, first chunk after 12ms") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if got["sessionId"] != "s1" || got["isSearchEnabled"] != true {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestChatLoop_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:error\ndata:{\"error\":\"An error occurred.\"}\n\n")
	}))
	defer srv.Close()

	err := chatLoop(context.Background(), newAPIClient(srv.URL, ""), chatOptions{SessionID: "s1"}, strings.NewReader("hola\n"), &bytes.Buffer{})
	if err == nil || err.Error() != service.MaskedErrorMessage {
		t.Fatalf("expected masked error, got %v", err)
	}
}

func TestSessionsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"sessions":[{"id":"s1","owner_id":"o","title":"Viajes","messages":[]}]}`)
	}))
	defer srv.Close()

	cmd := newRootCmd(cliConfig{Server: srv.URL, Token: "tok"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sessions", "list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "s1") || !strings.Contains(out.String(), "Viajes") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"Session not found"}`)
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL, "tok").deleteSession(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status=404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
