package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Preenchidos no PersistentPreRunE da raiz.
	cfg    *Config
	logger *zap.Logger

	caminhoConfig string
	modoDebug     bool
)

type opcaoMenu struct {
	descricao string
	args      []string
}

var opcoesMenu = []opcaoMenu{
	{"Explorar FTP do DATASUS (SINAN)", []string{"sinan", "explorar"}},
	{"Baixar documentacao do SINAN", []string{"sinan", "docs"}},
	{"Baixar TabWin (conversor DBC)", []string{"sinan", "tabwin"}},
	{"Baixar ACGR Brasil (dados preliminares)", []string{"sinan", "acgr"}},
	{"Converter DBC para CSV", []string{"sinan", "converter"}},
	{"Limpar CSVs do TabNet em data/tabnet", []string{"sinan", "limpar", "data/tabnet"}},
	{"Filtrar votacao 2022 por municipio", []string{"eleicoes", "filtrar"}},
	{"Geocodificar locais de votacao", []string{"eleicoes", "geocodificar"}},
	{"Painel de eleicoes (resumo)", []string{"eleicoes", "painel"}},
	{"Iniciar API na porta configurada", []string{"servir"}},
}

// escolherNoMenu mostra as opções numeradas e devolve os argumentos da escolhida.
func escolherNoMenu(in io.Reader, out io.Writer) ([]string, error) {
	fmt.Fprintln(out, "Selecione uma opção:")
	for i, o := range opcoesMenu {
		fmt.Fprintf(out, "%d - %s\n", i+1, o.descricao)
	}
	fmt.Fprintf(out, "Digite de 1 a %d: ", len(opcoesMenu))

	linha, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("erro ao ler opção: %w", err)
	}
	escolha, err := strconv.Atoi(strings.TrimSpace(linha))
	if err != nil || escolha < 1 || escolha > len(opcoesMenu) {
		return nil, fmt.Errorf("opção inválida: %q", strings.TrimSpace(linha))
	}
	return opcoesMenu[escolha-1].args, nil
}

func criarCmdRaiz() *cobra.Command {
	raiz := &cobra.Command{
		Use:           "dadosmg",
		Short:         "Ferramentas para dados publicos de Minas Gerais (SINAN e TSE)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = carregarConfig(caminhoConfig)
			if err != nil {
				return err
			}
			logger, err = novoLogger(modoDebug)
			if err != nil {
				return fmt.Errorf("erro ao criar logger: %w", err)
			}
			logger.Debug("configuracao carregada", zap.String("arquivo", caminhoConfig), zap.String("data_dir", cfg.DataDir))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	raiz.PersistentFlags().StringVar(&caminhoConfig, "config", "dadosmg.yaml", "arquivo de configuração YAML")
	raiz.PersistentFlags().BoolVar(&modoDebug, "debug", false, "log detalhado")

	raiz.AddCommand(criarCmdSinan())
	raiz.AddCommand(criarCmdEleicoes())
	raiz.AddCommand(criarCmdServir())
	raiz.AddCommand(criarCmdCarregar())
	return raiz
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raiz := criarCmdRaiz()
	if len(os.Args) == 1 {
		args, err := escolherNoMenu(os.Stdin, os.Stdout)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		raiz.SetArgs(args)
	}

	if err := raiz.ExecuteContext(ctx); err != nil {
		fmt.Printf("[ERRO] %v\n", err)
		os.Exit(1)
	}
}
