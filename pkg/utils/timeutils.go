package utils

import (
	"fmt"
	"time"
)

// OutputTimestampLayout formato usado no nome dos arquivos de saída
const OutputTimestampLayout = "2006-01-02-15-04-05"

// FormatDuration formata uma duração para exibição amigável
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour

	m := d / time.Minute
	d -= m * time.Minute

	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatDateTime formata um time.Time para exibição
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FormatOutputTimestamp formata t para compor nomes de arquivo
func FormatOutputTimestamp(t time.Time) string {
	return t.Format(OutputTimestampLayout)
}

// UnixMillis converte para milissegundos desde a época
func UnixMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
