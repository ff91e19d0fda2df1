package collab

import (
	"fmt"
	"unicode/utf8"

	"github.com/dimitrije/querydraft/internal/models"
	"github.com/dimitrije/querydraft/internal/services"
)

func validateEdit(kind models.EditKind, position int) error {
	switch kind {
	case models.EditInsert, models.EditDelete:
	case models.EditReplace:
		return services.ErrUnsupportedOperation
	default:
		return fmt.Errorf("%w: unknown edit kind %q", services.ErrValidation, kind)
	}
	if position < 0 {
		return fmt.Errorf("%w: position must not be negative", services.ErrValidation)
	}
	return nil
}

// applyEdit works in code points. Positions past the end clamp to the end.
// DELETE removes as many code points as content holds, starting at position.
func applyEdit(text string, kind models.EditKind, position int, content string) (string, error) {
	if err := validateEdit(kind, position); err != nil {
		return "", err
	}

	runes := []rune(text)
	pos := min(position, len(runes))
	n := utf8.RuneCountInString(content)

	switch kind {
	case models.EditInsert:
		out := make([]rune, 0, len(runes)+n)
		out = append(out, runes[:pos]...)
		out = append(out, []rune(content)...)
		out = append(out, runes[pos:]...)
		return string(out), nil
	default:
		end := min(pos+n, len(runes))
		return string(runes[:pos]) + string(runes[end:]), nil
	}
}
