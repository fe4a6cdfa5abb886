// Package gendata synthesizes a sample carbon emissions dataset to try the
// CLI against.
package gendata

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	StartDate = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	EndDate   = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Emission is one row of carbon_emissions_data. Date is days since the Unix
// epoch so Parquet readers see a DATE column.
type Emission struct {
	Date             int32   `parquet:"date,date"`
	Facility         string  `parquet:"facility"`
	City             string  `parquet:"city"`
	Country          string  `parquet:"country"`
	Department       string  `parquet:"department"`
	ActivityID       string  `parquet:"activity_id"`
	ActivityName     string  `parquet:"activity_name"`
	EmissionFactorID string  `parquet:"emission_factor_id"`
	Scope            string  `parquet:"scope"`
	ConsumptionValue float64 `parquet:"consumption_value"`
	ConsumptionUnit  string  `parquet:"consumption_unit"`
	EmissionsMtCO2e  float64 `parquet:"emissions_mt_co2e"`
}

func (e Emission) Day() time.Time {
	return time.Unix(int64(e.Date)*86400, 0).UTC()
}

type Generator struct {
	rnd  *rand.Rand
	days int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:  rand.New(rand.NewSource(seed)),
		days: int(EndDate.Sub(StartDate).Hours() / 24),
	}
}

func (g *Generator) Next() (Emission, error) {
	day := StartDate.AddDate(0, 0, g.rnd.Intn(g.days))
	facility := Facilities[g.rnd.Intn(len(Facilities))]
	activity := Activities[g.rnd.Intn(len(Activities))]
	factor, ok := factorByID(activity.EmissionFactorID)
	if !ok {
		return Emission{}, fmt.Errorf("activity %s references unknown emission factor %s", activity.ID, activity.EmissionFactorID)
	}

	consumption := math.Max(0, g.rnd.NormFloat64()*activity.Variance+activity.BaseAmount)
	emissions := consumption * factor.KgCO2e / 1000

	return Emission{
		Date:             int32(day.Unix() / 86400),
		Facility:         facility.Name,
		City:             facility.City,
		Country:          facility.Country,
		Department:       pickOne(g.rnd, Departments),
		ActivityID:       activity.ID,
		ActivityName:     activity.Name,
		EmissionFactorID: factor.ID,
		Scope:            factor.Scope,
		ConsumptionValue: round(consumption, 2),
		ConsumptionUnit:  factor.Unit,
		EmissionsMtCO2e:  round(emissions, 3),
	}, nil
}

func (g *Generator) Generate(n int) ([]Emission, error) {
	if n < 0 {
		return nil, fmt.Errorf("record count must be >= 0")
	}
	rows := make([]Emission, 0, n)
	for i := 0; i < n; i++ {
		row, err := g.Next()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
