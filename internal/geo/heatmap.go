package geo

import "github.com/bioscout-islamabad/bioscout/internal/model"

const (
	minRadius = 20
	maxRadius = 100
)

// Heatmap counts resolved observations per location string. Cells appear in
// the order their location is first seen. Unresolved records are skipped, and
// coordinates always come from the table, never from a jittered position.
func (g *Gazetteer) Heatmap(obs []model.EnrichedObservation) []model.HeatCell {
	index := make(map[string]int)
	var cells []model.HeatCell
	for _, o := range obs {
		if o.LatLng == nil {
			continue
		}
		i, seen := index[o.Location]
		if !seen {
			p, ok := g.Resolve(o.Location)
			if !ok {
				continue
			}
			i = len(cells)
			index[o.Location] = i
			cells = append(cells, model.HeatCell{Location: o.Location, Coordinate: p.Coordinate()})
		}
		cells[i].Count++
	}
	for i := range cells {
		cells[i].Radius = min(max(cells[i].Count*5, minRadius), maxRadius)
		cells[i].Intensity = min(float64(cells[i].Count)/10, 1)
	}
	return cells
}
