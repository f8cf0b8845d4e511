package record

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField o campo pedido não existe na linha
	ErrMissingField = errors.New("campo ausente")

	// ErrMalformedValue o valor do campo não é um número de ponto flutuante
	ErrMalformedValue = errors.New("valor não numérico")

	// ErrTruncatedLine o campo foi encontrado mas a linha termina antes do valor
	ErrTruncatedLine = errors.New("linha truncada")
)

// FieldError descreve uma falha ao extrair um campo de uma linha
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMalformedValue):
		return fmt.Sprintf("campo %q: %v (%q)", e.Field, e.Err, e.Value)
	default:
		return fmt.Sprintf("campo %q: %v", e.Field, e.Err)
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
