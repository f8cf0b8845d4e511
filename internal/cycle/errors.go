package cycle

import "fmt"

// ParseError interrompe a agregação: a linha Line (contada a partir de 1)
// não pôde ser lida. Err embrulha um *record.FieldError.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("linha %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
