package main

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func novoLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}

// formatarTamanho devolve o tamanho em bytes, KB ou MB.
func formatarTamanho(n int64) string {
	switch {
	case n > 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
	case n > 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func emMB(n int64) float64 {
	return float64(n) / 1024 / 1024
}

func arredondar(v float64, casas int) float64 {
	p := math.Pow(10, float64(casas))
	return math.Round(v*p) / p
}
