package main

import (
	"encoding/json"
	"html/template"
	"io"
	"os"

	"dadosmg/models"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// featuresLocais converte os locais geocodificados em pontos GeoJSON.
func featuresLocais(locais []models.LocalResumo) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, l := range locais {
		if !l.TemCoordenadas() {
			continue
		}
		ponto := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{*l.Lon, *l.Lat})
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       l.NrLocal,
			Geometry: ponto,
			Properties: map[string]interface{}{
				"nr_local":       l.NrLocal,
				"nome":           l.Nome,
				"endereco":       l.Endereco,
				"bairro":         l.Bairro,
				"secoes":         l.Secoes,
				"votos":          l.Votos,
				"vencedor":       l.Vencedor,
				"votos_vencedor": l.VotosVencedor,
				"percentual":     l.Percentual,
				"cor":            l.Cor,
			},
		})
	}
	return fc
}

func escreverGeoJSON(w io.Writer, locais []models.LocalResumo) error {
	data, err := json.Marshal(featuresLocais(locais))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

var mapaHTML = template.Must(template.New("mapa").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Titulo}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html,body,#mapa{height:100%;margin:0}</style>
</head>
<body>
<div id="mapa"></div>
<script>
var mapa = L.map('mapa').setView([{{.Stats.CentroLat}}, {{.Stats.CentroLon}}], 13);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap'
}).addTo(mapa);
var locais = {{.Locais}};
// o popup vira innerHTML no Leaflet
function esc(v) {
  var d = document.createElement('div');
  d.textContent = v == null ? '' : String(v);
  return d.innerHTML;
}
locais.forEach(function (l) {
  var popup = '<h4>' + esc(l.nome) + '</h4>' +
    '<p><b>Endereço:</b> ' + esc(l.endereco) + '</p>' +
    (l.bairro ? '<p><b>Bairro:</b> ' + esc(l.bairro) + '</p>' : '') +
    '<p><b>Seções:</b> ' + l.secoes + '</p>' +
    '<p><b>Total de votos:</b> ' + l.votos + '</p>' +
    '<p><b>Vencedor:</b> ' + esc(l.vencedor) + '</p>' +
    '<p><b>Votos:</b> ' + l.votos_vencedor + ' (' + l.percentual.toFixed(1) + '%)</p>';
  L.circleMarker([l.lat, l.lon], {color: l.cor, radius: 8}).bindPopup(popup).addTo(mapa);
});
</script>
</body>
</html>
`))

type dadosMapa struct {
	Titulo string
	Stats  models.EstatisticasMapa
	Locais []models.LocalResumo
}

// escreverMapaHTML gera uma página Leaflet com os locais geocodificados.
func escreverMapaHTML(w io.Writer, titulo string, locais []models.LocalResumo) error {
	com := locaisComCoordenadas(locais)
	if com == nil {
		com = []models.LocalResumo{}
	}
	return mapaHTML.Execute(w, dadosMapa{
		Titulo: titulo,
		Stats:  estatisticasMapa(com),
		Locais: com,
	})
}

func salvarArquivo(caminho string, escrever func(io.Writer) error) error {
	f, err := os.Create(caminho)
	if err != nil {
		return err
	}
	if err := escrever(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
