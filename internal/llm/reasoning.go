package llm

import (
	"context"
	"strings"
)

// ExtractReasoning separa el texto encerrado en <tag>...</tag> como deltas de
// razonamiento. Con startInside el stream se considera abierto desde el inicio
// (modelos que omiten la etiqueta de apertura). Las etiquetas pueden llegar
// partidas entre fragmentos.
func ExtractReasoning(ctx context.Context, in <-chan Delta, tag string, startInside bool) <-chan Delta {
	out := make(chan Delta)
	openTag, closeTag := "<"+tag+">", "</"+tag+">"

	go func() {
		defer close(out)
		var (
			buf         string
			inReasoning = startInside
			trimText    bool
		)

		emit := func(text string, reasoning bool) bool {
			if !reasoning && trimText {
				text = strings.TrimLeft(text, "\n")
				if text == "" {
					return true
				}
				trimText = false
			}
			if text == "" {
				return true
			}
			kind := DeltaText
			if reasoning {
				kind = DeltaReasoning
			}
			return send(ctx, out, Delta{Kind: kind, Text: text})
		}

		for {
			d, ok := recv(ctx, in)
			if !ok {
				break
			}
			if d.Err != nil || d.Kind != DeltaText {
				if !emit(buf, inReasoning) {
					return
				}
				buf = ""
				if !send(ctx, out, d) {
					return
				}
				continue
			}

			buf += d.Text
			for {
				target := openTag
				if inReasoning {
					target = closeTag
				}
				idx := strings.Index(buf, target)
				if idx < 0 {
					keep := partialSuffix(buf, target)
					if !emit(buf[:len(buf)-keep], inReasoning) {
						return
					}
					buf = buf[len(buf)-keep:]
					break
				}
				if !emit(buf[:idx], inReasoning) {
					return
				}
				buf = buf[idx+len(target):]
				if inReasoning {
					trimText = true
				}
				inReasoning = !inReasoning
			}
		}
		emit(buf, inReasoning)
	}()
	return out
}

// partialSuffix devuelve el largo del sufijo de s que es prefijo de tag.
func partialSuffix(s, tag string) int {
	limit := len(tag) - 1
	if limit > len(s) {
		limit = len(s)
	}
	for n := limit; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
