package utils

import (
	"encoding/binary"
	"math"
	"strconv"
)

// Float32ToBytes converte um float32 para bytes big-endian (REAL do S7)
func Float32ToBytes(val float32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, math.Float32bits(val))
	return bytes
}

// BytesToFloat32 converte bytes big-endian para float32
func BytesToFloat32(bytes []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(bytes))
}

// Int32ToBytes converte um int32 para bytes big-endian (DINT do S7)
func Int32ToBytes(val int32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, uint32(val))
	return bytes
}

// BytesToInt32 converte bytes big-endian para int32
func BytesToInt32(bytes []byte) int32 {
	return int32(binary.BigEndian.Uint32(bytes))
}

// FormatFloat32 formata com a menor quantidade de dígitos que preserva o
// valor em precisão simples, sem notação exponencial ("3", "-1", "2.5")
func FormatFloat32(value float32) string {
	switch {
	case math.IsInf(float64(value), 1):
		return "inf"
	case math.IsInf(float64(value), -1):
		return "-inf"
	case math.IsNaN(float64(value)):
		return "NaN"
	}
	return strconv.FormatFloat(float64(value), 'f', -1, 32)
}
