package llm

import (
	"context"
	"strings"
	"time"
)

// SmoothLines reagrupa el texto en lineas completas y las libera con una pausa
// entre cada una. El resto sin salto de linea se libera al final o antes de
// cualquier delta que no sea texto.
func SmoothLines(ctx context.Context, in <-chan Delta, delay time.Duration) <-chan Delta {
	out := make(chan Delta)

	go func() {
		defer close(out)
		var buf strings.Builder

		flush := func() bool {
			if buf.Len() == 0 {
				return true
			}
			text := buf.String()
			buf.Reset()
			return send(ctx, out, Delta{Kind: DeltaText, Text: text})
		}

		for {
			d, ok := recv(ctx, in)
			if !ok {
				break
			}
			if d.Err != nil || d.Kind != DeltaText {
				if !flush() || !send(ctx, out, d) {
					return
				}
				continue
			}

			buf.WriteString(d.Text)
			for {
				pending := buf.String()
				idx := strings.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				buf.Reset()
				buf.WriteString(pending[idx+1:])
				if !send(ctx, out, Delta{Kind: DeltaText, Text: pending[:idx+1]}) {
					return
				}
				if !pause(ctx, delay) {
					return
				}
			}
		}
		flush()
	}()
	return out
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
