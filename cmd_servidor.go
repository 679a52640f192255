package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func criarCmdServir() *cobra.Command {
	var (
		addr     string
		csvSinan string
	)
	cmd := &cobra.Command{
		Use:   "servir",
		Short: "API JSON com os paineis de eleicoes e SINAN",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if csvSinan != "" {
				csvSinan = cfg.caminho(csvSinan)
			}
			s := novoServidor(cfg.caminho(cfg.Eleicoes.OutputDir), csvSinan, logger)
			if err := s.recarregar(); err != nil {
				// sobe mesmo assim; as rotas sem dados respondem 503
				logger.Warn("carga inicial incompleta", zap.Error(err))
			}
			fmt.Printf("Servidor iniciado na porta %s\n", addr)
			err := s.iniciar(cmd.Context(), addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "endereco (padrao: server.addr)")
	cmd.Flags().StringVar(&csvSinan, "sinan-csv", "", "CSV do SINAN para as rotas /sinan")
	return cmd
}

func criarCmdCarregar() *cobra.Command {
	return &cobra.Command{
		Use:   "carregar <tabela> <arquivo.csv>",
		Short: "Importa um CSV para o Postgres, criando banco e tabela",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := carregarCSV(cmd.Context(), cfg.Database, args[0], cfg.caminho(args[1]), logger)
			if err != nil {
				return err
			}
			logger.Info("carga concluida", zap.String("tabela", args[0]), zap.Int("registros", n))
			return nil
		},
	}
}
