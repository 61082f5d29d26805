package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-llm/internal/domain"
	"chat-llm/internal/llm"
	"chat-llm/internal/metrics"
	"chat-llm/internal/repository"
	"chat-llm/internal/search"
)

const (
	MaskedErrorMessage = "An error occurred."

	StatusPending   = "pending"
	StatusSearching = "Searching with Tavily API..."
	StatusSuccess   = "Success"

	defaultPersistTimeout = 10 * time.Second
)

var (
	ErrInvalidChatRequest = errors.New("invalid chat request")
	ErrUnknownModel       = errors.New("unknown model")
	ErrRateLimited        = errors.New("rate limited")
)

type ChatEventType string

const (
	EventStatus     ChatEventType = "status"
	EventAnnotation ChatEventType = "annotation"
	EventText       ChatEventType = "text"
	EventReasoning  ChatEventType = "reasoning"
	EventError      ChatEventType = "error"
	EventFinish     ChatEventType = "finish"
)

// ChatEvent es un evento del turno en el orden en que debe llegar al cliente.
// EventFinish y EventError son terminales.
type ChatEvent struct {
	Type       ChatEventType
	Status     string
	Annotation *domain.Annotation
	Text       string
	Error      string
	MessageID  string
}

// Payload devuelve el cuerpo JSON del evento para el cliente.
func (e ChatEvent) Payload() any {
	switch e.Type {
	case EventStatus:
		return map[string]string{"type": "fetch", "status": e.Status}
	case EventAnnotation:
		return e.Annotation
	case EventText, EventReasoning:
		return map[string]string{"text": e.Text}
	case EventError:
		return map[string]string{"error": e.Error}
	default:
		return map[string]string{"messageId": e.MessageID, "finishReason": "stop"}
	}
}

// TurnInput es una solicitud de turno ya autenticada.
type TurnInput struct {
	OwnerID          string
	SessionID        string
	Message          domain.ChatMessage
	ModelID          string
	SearchEnabled    bool
	ReasoningEnabled bool
}

// ModelCatalog resuelve ids de modelo a entradas invocables.
type ModelCatalog interface {
	Lookup(id string) (llm.Model, error)
	DefaultID() string
}

// ChatService orquesta un turno: busqueda opcional, prompt, stream del modelo,
// anotaciones y persistencia de la sesion.
//
// La persistencia reemplaza la lista completa de mensajes sin comparar
// versiones: si dos turnos de la misma sesion corren a la vez, el ultimo
// en guardar gana y el otro turno se pierde.
type ChatService struct {
	sessions       repository.ChatSessionRepository
	models         ModelCatalog
	searcher       search.Searcher
	limiter        RateLimiter
	logger         *zap.Logger
	now            func() time.Time
	persistTimeout time.Duration
}

func NewChatService(
	sessions repository.ChatSessionRepository,
	models ModelCatalog,
	searcher search.Searcher,
	limiter RateLimiter,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		sessions:       sessions,
		models:         models,
		searcher:       searcher,
		limiter:        limiter,
		logger:         logger,
		now:            time.Now,
		persistTimeout: defaultPersistTimeout,
	}
}

type turn struct {
	input    TurnInput
	model    llm.Model
	messages []domain.ChatMessage
}

// Start valida la solicitud y carga la sesion de forma sincronica; el resto del
// turno corre en una goroutine que escribe en el canal devuelto y lo cierra al
// terminar. Cancelar ctx aborta el turno sin persistir.
func (s *ChatService) Start(ctx context.Context, in TurnInput) (<-chan ChatEvent, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if in.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidChatRequest)
	}
	if err := domain.ValidateUserMessage(in.Message); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChatRequest, err)
	}

	modelID := strings.TrimSpace(in.ModelID)
	if modelID == "" {
		modelID = s.models.DefaultID()
	}
	model, err := s.models.Lookup(modelID)
	if err != nil {
		if errors.Is(err, llm.ErrUnknownModel) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
		}
		return nil, err
	}
	in.ModelID = model.ID

	if s.limiter != nil && !s.limiter.Allow(ctx, in.OwnerID) {
		metrics.RateLimitHits.Inc()
		return nil, ErrRateLimited
	}

	session, err := s.sessions.Get(ctx, in.OwnerID, in.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	userMsg := in.Message
	if userMsg.ID == "" {
		userMsg.ID = uuid.NewString()
	}
	if userMsg.CreatedAt.IsZero() {
		userMsg.CreatedAt = s.now().UTC()
	}
	messages := make([]domain.ChatMessage, 0, len(session.Messages)+2)
	messages = append(messages, session.Messages...)
	messages = append(messages, userMsg)

	out := make(chan ChatEvent, 16)
	go s.run(ctx, turn{input: in, model: model, messages: messages}, out)
	return out, nil
}

func (s *ChatService) run(ctx context.Context, t turn, out chan<- ChatEvent) {
	defer close(out)
	in := t.input
	log := s.logger.With(
		zap.String("session_id", in.SessionID),
		zap.String("model", in.ModelID),
	)
	emit := func(ev ChatEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	question := domain.LastUserContent(t.messages)
	systemPrompt := DefaultSystemPrompt
	var searchAnnotation *domain.Annotation

	if in.SearchEnabled {
		if !emit(ChatEvent{Type: EventStatus, Status: StatusPending}) ||
			!emit(ChatEvent{Type: EventStatus, Status: StatusSearching}) {
			s.cancelled(log, in)
			return
		}
		results := s.search(ctx, log, question)
		if ctx.Err() != nil {
			s.cancelled(log, in)
			return
		}
		ann := domain.NewSearchResultsAnnotation(results)
		searchAnnotation = &ann
		if !emit(ChatEvent{Type: EventStatus, Status: StatusSuccess}) ||
			!emit(ChatEvent{Type: EventAnnotation, Annotation: searchAnnotation}) {
			s.cancelled(log, in)
			return
		}
		systemPrompt = BuildSystemPrompt(question, results)
	}

	start := s.now()
	stream, err := t.model.Stream(ctx, llm.TurnOptions{
		System:           systemPrompt,
		Messages:         toLLMMessages(t.messages),
		ReasoningEnabled: in.ReasoningEnabled,
	})
	if err != nil {
		s.fail(ctx, log, in, err, emit)
		return
	}

	var (
		text, reasoning strings.Builder
		waitingTimeMs   int64
		gotChunk        bool
	)
	for d := range stream {
		if d.Err != nil {
			s.fail(ctx, log, in, d.Err, emit)
			return
		}
		if !gotChunk {
			gotChunk = true
			elapsed := s.now().Sub(start)
			waitingTimeMs = elapsed.Milliseconds()
			metrics.FirstChunkLatency.WithLabelValues(in.ModelID).Observe(elapsed.Seconds())
		}
		ev := ChatEvent{Type: EventText, Text: d.Text}
		if d.Kind == llm.DeltaReasoning {
			ev.Type = EventReasoning
			reasoning.WriteString(d.Text)
		} else {
			text.WriteString(d.Text)
		}
		if !emit(ev) {
			break
		}
	}
	if ctx.Err() != nil {
		s.cancelled(log, in)
		return
	}

	info := domain.NewInfoAnnotation(domain.InfoAnnotation{
		ModelID:          in.ModelID,
		WaitingTimeMs:    waitingTimeMs,
		ReasoningEnabled: in.ReasoningEnabled,
	})
	assistant := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   text.String(),
		Reasoning: reasoning.String(),
		CreatedAt: s.now().UTC(),
	}
	if searchAnnotation != nil {
		assistant.Annotations = append(assistant.Annotations, *searchAnnotation)
	}
	assistant.Annotations = append(assistant.Annotations, info)
	emit(ChatEvent{Type: EventAnnotation, Annotation: &info})

	s.persist(ctx, log, in, append(t.messages, assistant))
	metrics.ChatTurns.WithLabelValues(in.ModelID, metrics.OutcomeCompleted).Inc()
	emit(ChatEvent{Type: EventFinish, MessageID: assistant.ID})
}

// search nunca falla: cualquier error degrada a cero resultados.
func (s *ChatService) search(ctx context.Context, log *zap.Logger, question string) []domain.SearchResult {
	if s.searcher == nil {
		metrics.SearchRequests.WithLabelValues(metrics.SearchDegraded).Inc()
		log.Warn("search degraded", zap.Error(search.ErrNotConfigured))
		return []domain.SearchResult{}
	}
	results, err := s.searcher.Search(ctx, question)
	if err != nil {
		metrics.SearchRequests.WithLabelValues(metrics.SearchDegraded).Inc()
		if ctx.Err() == nil {
			log.Warn("search degraded", zap.Error(err))
		}
		return []domain.SearchResult{}
	}
	metrics.SearchRequests.WithLabelValues(metrics.SearchOK).Inc()
	return results
}

// persist guarda la sesion aunque el cliente ya se haya desconectado: el turno
// ya termino. Los errores solo se registran.
func (s *ChatService) persist(ctx context.Context, log *zap.Logger, in TurnInput, messages []domain.ChatMessage) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	if err := s.sessions.SaveMessages(pctx, in.OwnerID, in.SessionID, messages); err != nil {
		metrics.PersistFailures.Inc()
		log.Error("persist session failed", zap.Error(err), zap.Int("messages", len(messages)))
	}
}

func (s *ChatService) fail(ctx context.Context, log *zap.Logger, in TurnInput, err error, emit func(ChatEvent) bool) {
	if ctx.Err() != nil {
		s.cancelled(log, in)
		return
	}
	metrics.ChatTurns.WithLabelValues(in.ModelID, metrics.OutcomeFailed).Inc()
	log.Error("chat stream failed", zap.Error(err))
	emit(ChatEvent{Type: EventError, Error: MaskedErrorMessage})
}

func (s *ChatService) cancelled(log *zap.Logger, in TurnInput) {
	metrics.ChatTurns.WithLabelValues(in.ModelID, metrics.OutcomeCancelled).Inc()
	log.Info("chat turn cancelled by client")
}

func toLLMMessages(messages []domain.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
