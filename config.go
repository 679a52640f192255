package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config reúne as configurações de todas as ferramentas.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Workers  int            `yaml:"workers"`
	Sinan    SinanConfig    `yaml:"sinan"`
	Eleicoes EleicoesConfig `yaml:"eleicoes"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
}

type SinanConfig struct {
	FTPHost      string `yaml:"ftp_host"`
	BasePath     string `yaml:"base_path"`
	PrelimURL    string `yaml:"prelim_url"`
	DocsURL      string `yaml:"docs_url"`
	TabwinURL    string `yaml:"tabwin_url"`
	DocsDir      string `yaml:"docs_dir"`
	TabwinDir    string `yaml:"tabwin_dir"`
	Dbf2Dbc      string `yaml:"dbf2dbc"`
	DbcDir       string `yaml:"dbc_dir"`
	DbfDir       string `yaml:"dbf_dir"`
	CsvDir       string `yaml:"csv_dir"`
	AgravoPadrao string `yaml:"agravo_padrao"`
	AnosPrelim   []int  `yaml:"anos_prelim"`
}

type EleicoesConfig struct {
	DataURL    string   `yaml:"data_url"`
	Municipios []string `yaml:"municipios"`
	OutputDir  string   `yaml:"output_dir"`
}

type GeocodeConfig struct {
	APIURL            string        `yaml:"api_url"`
	APIKey            string        `yaml:"api_key"`
	UserAgent         string        `yaml:"user_agent"`
	Delay             time.Duration `yaml:"delay"`
	ErrorDelay        time.Duration `yaml:"error_delay"`
	PauseEvery        int           `yaml:"pause_every"`
	PauseDuration     time.Duration `yaml:"pause_duration"`
	SaveEvery         int           `yaml:"save_every"`
	CacheFile         string        `yaml:"cache_file"`
	Sufixo            string        `yaml:"sufixo"`
	FallbackMunicipio bool          `yaml:"fallback_municipio"`
	Timeout           time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	SSLMode   string `yaml:"sslmode"`
	BatchSize int    `yaml:"batch_size"`
}

func padraoConfig() *Config {
	return &Config{
		DataDir: ".",
		Workers: 6,
		Sinan: SinanConfig{
			FTPHost:      "ftp.datasus.gov.br",
			BasePath:     "/dissemin/publicos/SINAN/DADOS/FINAIS/",
			PrelimURL:    "ftp://ftp.datasus.gov.br/dissemin/publicos/SINAN/DADOS/PRELIM/",
			DocsURL:      "ftp://ftp.datasus.gov.br/dissemin/publicos/SINAN/DOCS/Docs_TAB_SINAN.zip",
			TabwinURL:    "ftp://ftp.datasus.gov.br/tabwin/tabwin/TAB415.zip",
			DocsDir:      "sinan_docs",
			TabwinDir:    "tabwin",
			Dbf2Dbc:      filepath.Join("tabwin", "dbf2dbc.exe"),
			DbcDir:       filepath.Join("data", "dbc_files"),
			DbfDir:       filepath.Join("data", "dbf_files"),
			CsvDir:       filepath.Join("data", "csv_files"),
			AgravoPadrao: "ACGR",
			AnosPrelim:   []int{2020, 2021, 2022, 2023, 2024, 2025},
		},
		Eleicoes: EleicoesConfig{
			DataURL:    "https://cdn.tse.jus.br/estatistica/sead/odsele/votacao_secao/votacao_secao_2022_MG.zip",
			Municipios: []string{"PASSOS"},
			OutputDir:  ".",
		},
		Geocode: GeocodeConfig{
			APIURL:        "https://geocode.maps.co/search",
			UserAgent:     "dadosmg/1.0",
			Delay:         1500 * time.Millisecond,
			ErrorDelay:    2 * time.Second,
			PauseEvery:    50,
			PauseDuration: 10 * time.Second,
			SaveEvery:     10,
			CacheFile:     "geocode_cache.json",
			Sufixo:        "MG, Brasil",
			Timeout:       10 * time.Second,
		},
		Server: ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "5432",
			User:      "postgres",
			Name:      "dadosmg",
			SSLMode:   "disable",
			BatchSize: 1000,
		},
	}
}

// carregarConfig lê o YAML (se existir), o .env e as variáveis de ambiente,
// nesta ordem de precedência crescente.
func carregarConfig(caminho string) (*Config, error) {
	cfg := padraoConfig()

	if caminho != "" {
		data, err := os.ReadFile(caminho)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("erro ao ler configuração %s: %w", caminho, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("erro ao interpretar configuração %s: %w", caminho, err)
			}
		}
	}

	// .env é opcional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("erro ao carregar arquivo .env: %w", err)
	}
	aplicarAmbiente(cfg)

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func aplicarAmbiente(cfg *Config) {
	sobrescrever(&cfg.DataDir, "DADOSMG_DATA_DIR")
	sobrescrever(&cfg.Geocode.APIKey, "DADOSMG_GEOCODE_API_KEY")
	sobrescrever(&cfg.Geocode.APIURL, "DADOSMG_GEOCODE_URL")
	sobrescrever(&cfg.Server.Addr, "DADOSMG_ADDR")
	sobrescrever(&cfg.Database.Host, "DB_HOST")
	sobrescrever(&cfg.Database.Port, "DB_PORT")
	sobrescrever(&cfg.Database.User, "DB_USER")
	sobrescrever(&cfg.Database.Password, "DB_PASSWORD")
	sobrescrever(&cfg.Database.Name, "DB_NAME")
	if v := os.Getenv("DADOSMG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}

func sobrescrever(dst *string, chave string) {
	if v := os.Getenv(chave); v != "" {
		*dst = v
	}
}

// caminho resolve um caminho relativo ao DataDir.
func (c *Config) caminho(p string) string {
	if filepath.IsAbs(p) || c.DataDir == "" || c.DataDir == "." {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (d DatabaseConfig) connStr() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
