package models

// LocalVotacao identifica um local de votação dentro de um município.
type LocalVotacao struct {
	Municipio string
	Nome      string
	Endereco  string
	Numero    string
}

// Chave usada no cache de geocodificação.
func (l LocalVotacao) Chave() string {
	return l.Numero + "_" + l.Municipio
}

type Coordenada struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Bairro string  `json:"bairro,omitempty"`
}

type LocalGeocodificado struct {
	NrLocalVotacao string  `csv:"NR_LOCAL_VOTACAO" json:"nr_local_votacao"`
	NmMunicipio    string  `csv:"NM_MUNICIPIO" json:"nm_municipio"`
	NmLocalVotacao string  `csv:"NM_LOCAL_VOTACAO" json:"nm_local_votacao"`
	DsEndereco     string  `csv:"DS_LOCAL_VOTACAO_ENDERECO" json:"ds_local_votacao_endereco"`
	Bairro         string  `csv:"BAIRRO" json:"bairro"`
	Latitude       float64 `csv:"latitude" json:"latitude"`
	Longitude      float64 `csv:"longitude" json:"longitude"`
	Fonte          string  `csv:"fonte" json:"fonte"`
}

type VotoCandidato struct {
	Candidato string `json:"candidato"`
	Votos     int    `json:"votos"`
}

type RankingMunicipio struct {
	Municipio  string          `json:"municipio"`
	Candidatos []VotoCandidato `json:"candidatos"`
	TotalVotos int             `json:"total_votos"`
	Zonas      int             `json:"zonas"`
	Secoes     int             `json:"secoes"`
	Bairros    int             `json:"bairros,omitempty"`
}

type ResumoEleicoes struct {
	Cargo      string `json:"cargo"`
	Turno      string `json:"turno"`
	Registros  int    `json:"registros"`
	Municipios int    `json:"municipios"`
	Zonas      int    `json:"zonas"`
	Enderecos  int    `json:"enderecos"`
}

type LocalResumo struct {
	NrLocal       string   `json:"nr_local"`
	Nome          string   `json:"nome"`
	Endereco      string   `json:"endereco"`
	Bairro        string   `json:"bairro,omitempty"`
	Secoes        int      `json:"secoes"`
	Votos         int      `json:"votos"`
	Vencedor      string   `json:"vencedor"`
	VotosVencedor int      `json:"votos_vencedor"`
	Percentual    float64  `json:"percentual"`
	Cor           string   `json:"cor"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
}

func (l LocalResumo) TemCoordenadas() bool {
	return l.Lat != nil && l.Lon != nil
}

type EstatisticasMapa struct {
	Locais      int     `json:"locais"`
	TotalSecoes int     `json:"total_secoes"`
	TotalVotos  int     `json:"total_votos"`
	MediaSecoes float64 `json:"media_secoes"`
	CentroLat   float64 `json:"centro_lat"`
	CentroLon   float64 `json:"centro_lon"`
}
