package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
)

func criarCmdEleicoes() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eleicoes",
		Short: "Votacao por secao do TSE (MG, 2022)",
	}
	cmd.AddCommand(criarCmdFiltrar())
	cmd.AddCommand(criarCmdGeocodificar())
	cmd.AddCommand(criarCmdPainelEleicoes())
	cmd.AddCommand(criarCmdMapa())
	return cmd
}

func criarCmdFiltrar() *cobra.Command {
	var (
		zipLocal   string
		municipios []string
	)
	cmd := &cobra.Command{
		Use:   "filtrar",
		Short: "Baixa o zip do TSE, filtra os municipios e agrega os votos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(municipios) > 0 {
				cfg.Eleicoes.Municipios = municipios
			}
			out, err := filtrarEleicoes(cmd.Context(), cfg, zipLocal, logger)
			if err != nil {
				return err
			}
			if out.Stats.Filtradas == 0 {
				fmt.Println("[AVISO] Nenhuma linha corresponde aos municipios configurados")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&zipLocal, "zip", "", "usa um zip ja baixado em vez de baixar")
	cmd.Flags().StringSliceVar(&municipios, "municipio", nil, "municipios a manter (padrao: eleicoes.municipios)")
	return cmd
}

func criarCmdGeocodificar() *cobra.Command {
	return &cobra.Command{
		Use:   "geocodificar",
		Short: "Geocodifica os locais de votacao do agregado mais recente",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := executarGeocodificacao(cmd.Context(), cfg, logger)
			return err
		},
	}
}

type filtrosPainel struct {
	cargo     string
	turno     string
	municipio string
	bairros   []string
	top       int
	xlsx      string
}

func (f *filtrosPainel) registrar(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cargo, "cargo", "", "cargo (padrao: PRESIDENTE quando existir)")
	cmd.Flags().StringVar(&f.turno, "turno", "", "turno (1 ou 2); vazio considera todos")
	cmd.Flags().StringVar(&f.municipio, "municipio", "", "municipio")
	cmd.Flags().StringVar(&f.xlsx, "xlsx", "", "exporta para XLSX")
}

func carregarPainelCmd(f *filtrosPainel) (*painelEleicoes, error) {
	p, err := carregarPainelEleicoes(cfg.caminho(cfg.Eleicoes.OutputDir))
	if err != nil {
		return nil, fmt.Errorf("%w (execute: dadosmg eleicoes filtrar)", err)
	}
	if f.cargo == "" {
		f.cargo = p.cargoInicial()
	}
	return p, nil
}

func criarCmdPainelEleicoes() *cobra.Command {
	var f filtrosPainel
	cmd := &cobra.Command{
		Use:   "painel",
		Short: "Resumo e ranking de candidatos por municipio",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := carregarPainelCmd(&f)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Cargos: %v\nTurnos: %v\n\n", p.cargos(), p.turnos())
			renderizarResumo(out, p.resumo(f.cargo, f.turno))

			if f.municipio == "" {
				fmt.Fprintf(out, "\nMunicipios: %v\n", p.municipios(f.cargo, f.turno))
				return nil
			}
			r := p.ranking(f.cargo, f.turno, f.municipio, f.bairros)
			if len(r.Candidatos) == 0 && r.TotalVotos == 0 {
				return fmt.Errorf("nenhum voto para %s em %s", f.cargo, f.municipio)
			}
			renderizarRanking(out, r, f.top)
			if f.xlsx != "" {
				if err := exportarRankingXLSX(f.xlsx, r); err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Planilha salva: %s\n", f.xlsx)
			}
			return nil
		},
	}
	f.registrar(cmd)
	cmd.Flags().StringSliceVar(&f.bairros, "bairro", nil, "filtra por bairro (requer geocodificacao)")
	cmd.Flags().IntVar(&f.top, "top", 10, "candidatos exibidos")
	return cmd
}

func criarCmdMapa() *cobra.Command {
	var (
		f       filtrosPainel
		geoJSON string
		html    string
	)
	cmd := &cobra.Command{
		Use:   "mapa",
		Short: "Locais de votacao de um municipio com vencedor e coordenadas",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.municipio == "" {
				return errors.New("informe --municipio")
			}
			out := cmd.OutOrStdout()
			p, err := carregarPainelCmd(&f)
			if err != nil {
				return err
			}

			locais := p.locais(f.cargo, f.turno, f.municipio)
			if len(locais) == 0 {
				return fmt.Errorf("nenhum local de votacao para %s em %s", f.cargo, f.municipio)
			}
			renderizarLocais(out, locais)
			renderizarEstatisticasMapa(out, estatisticasMapa(locais))

			com := locaisComCoordenadas(locais)
			if len(com) == 0 {
				fmt.Fprintln(out, "[AVISO] Nenhum local geocodificado (execute: dadosmg eleicoes geocodificar)")
			}

			if geoJSON != "" {
				if err := salvarArquivo(geoJSON, func(w io.Writer) error { return escreverGeoJSON(w, locais) }); err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] GeoJSON salvo: %s (%d pontos)\n", geoJSON, len(com))
			}
			if html != "" {
				titulo := fmt.Sprintf("%s - %s", f.municipio, f.cargo)
				if err := salvarArquivo(html, func(w io.Writer) error { return escreverMapaHTML(w, titulo, locais) }); err != nil {
					return err
				}
				abs, _ := filepath.Abs(html)
				fmt.Fprintf(out, "[OK] Mapa salvo: %s\n", abs)
			}
			if f.xlsx != "" {
				if err := exportarLocaisXLSX(f.xlsx, locais); err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Planilha salva: %s\n", f.xlsx)
			}
			return nil
		},
	}
	f.registrar(cmd)
	cmd.Flags().StringVar(&geoJSON, "geojson", "", "grava os locais geocodificados em GeoJSON")
	cmd.Flags().StringVar(&html, "html", "", "grava um mapa HTML (Leaflet)")
	return cmd
}
