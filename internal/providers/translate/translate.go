package translate

import "context"

type Provider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	Close() error
}
