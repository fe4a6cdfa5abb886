package gendata

// EmissionFactor is the CO2 equivalent released per unit of an activity.
type EmissionFactor struct {
	ID          string  `parquet:"emission_factor_id"`
	Name        string  `parquet:"name"`
	Scope       string  `parquet:"scope"`
	Unit        string  `parquet:"unit"`
	KgCO2e      float64 `parquet:"kg_co2e"`
	Description string  `parquet:"description"`
}

type Activity struct {
	ID               string  `parquet:"activity_id"`
	Name             string  `parquet:"name"`
	EmissionFactorID string  `parquet:"emission_factor_id"`
	BaseAmount       float64 `parquet:"base_amount"`
	Variance         float64 `parquet:"variance"`
}

type Facility struct {
	Name    string
	City    string
	Country string
}

var EmissionFactors = []EmissionFactor{
	{ID: "EF001", Name: "electricity_usa", Scope: "Scope 2", Unit: "kWh", KgCO2e: 0.42, Description: "US Grid electricity"},
	{ID: "EF002", Name: "electricity_eu", Scope: "Scope 2", Unit: "kWh", KgCO2e: 0.23, Description: "EU Grid electricity"},
	{ID: "EF003", Name: "electricity_china", Scope: "Scope 2", Unit: "kWh", KgCO2e: 0.61, Description: "China Grid electricity"},
	{ID: "EF004", Name: "electricity_india", Scope: "Scope 2", Unit: "kWh", KgCO2e: 0.82, Description: "India Grid electricity"},
	{ID: "EF010", Name: "natural_gas_therm", Scope: "Scope 1", Unit: "therms", KgCO2e: 5.3, Description: "Natural gas burning"},
	{ID: "EF011", Name: "diesel_generator", Scope: "Scope 1", Unit: "liters", KgCO2e: 2.68, Description: "Diesel generator"},
	{ID: "EF012", Name: "lpg_stationary", Scope: "Scope 1", Unit: "kg", KgCO2e: 2.98, Description: "LPG stationary combustion"},
	{ID: "EF020", Name: "gasoline_car", Scope: "Scope 1", Unit: "liters", KgCO2e: 2.31, Description: "Passenger car - gasoline"},
	{ID: "EF021", Name: "diesel_car", Scope: "Scope 1", Unit: "liters", KgCO2e: 2.68, Description: "Passenger car - diesel"},
	{ID: "EF022", Name: "electric_car", Scope: "Scope 1", Unit: "kWh", KgCO2e: 0.0, Description: "Electric vehicle charging"},
	{ID: "EF023", Name: "hybrid_car", Scope: "Scope 1", Unit: "liters", KgCO2e: 2.15, Description: "Hybrid vehicle"},
	{ID: "EF024", Name: "heavy_truck_diesel", Scope: "Scope 1", Unit: "liters", KgCO2e: 2.72, Description: "Heavy goods vehicle"},
	{ID: "EF030", Name: "flight_domestic", Scope: "Scope 3", Unit: "km", KgCO2e: 0.18, Description: "Domestic flights (<500km)"},
	{ID: "EF031", Name: "flight_short_haul", Scope: "Scope 3", Unit: "km", KgCO2e: 0.15, Description: "Short-haul flights (500-1500km)"},
	{ID: "EF032", Name: "flight_long_haul_economy", Scope: "Scope 3", Unit: "km", KgCO2e: 0.11, Description: "Long-haul flights economy"},
	{ID: "EF033", Name: "flight_long_haul_business", Scope: "Scope 3", Unit: "km", KgCO2e: 0.32, Description: "Long-haul flights business"},
	{ID: "EF034", Name: "rail_travel_electric", Scope: "Scope 3", Unit: "km", KgCO2e: 0.03, Description: "Electric train travel"},
	{ID: "EF035", Name: "rail_travel_diesel", Scope: "Scope 3", Unit: "km", KgCO2e: 0.07, Description: "Diesel train travel"},
	{ID: "EF040", Name: "waste_landfill_usa", Scope: "Scope 3", Unit: "kg", KgCO2e: 0.58, Description: "Landfill waste USA"},
	{ID: "EF041", Name: "waste_landfill_eu", Scope: "Scope 3", Unit: "kg", KgCO2e: 0.48, Description: "Landfill waste EU"},
	{ID: "EF042", Name: "waste_recycled_paper", Scope: "Scope 3", Unit: "kg", KgCO2e: 0.08, Description: "Recycled paper waste"},
	{ID: "EF043", Name: "waste_recycled_plastic", Scope: "Scope 3", Unit: "kg", KgCO2e: 0.12, Description: "Recycled plastic waste"},
	{ID: "EF044", Name: "waste_incinerated", Scope: "Scope 3", Unit: "kg", KgCO2e: 0.58, Description: "Incinerated waste"},
	{ID: "EF050", Name: "water_supply", Scope: "Scope 3", Unit: "cubic_meters", KgCO2e: 0.344, Description: "Water supply"},
	{ID: "EF051", Name: "water_treatment", Scope: "Scope 3", Unit: "cubic_meters", KgCO2e: 0.708, Description: "Water treatment"},
	{ID: "EF052", Name: "refrigerant_r410a", Scope: "Scope 1", Unit: "kg", KgCO2e: 2088.0, Description: "R410A refrigerant leakage"},
	{ID: "EF053", Name: "refrigerant_r134a", Scope: "Scope 1", Unit: "kg", KgCO2e: 1430.0, Description: "R134A refrigerant leakage"},
	{ID: "EF060", Name: "steel_production", Scope: "Scope 1", Unit: "tonnes", KgCO2e: 1800.0, Description: "Steel manufacturing"},
	{ID: "EF061", Name: "cement_production", Scope: "Scope 1", Unit: "tonnes", KgCO2e: 900.0, Description: "Cement production"},
	{ID: "EF062", Name: "aluminum_production", Scope: "Scope 1", Unit: "tonnes", KgCO2e: 1600.0, Description: "Aluminum production"},
}

// Activities each point at a factor in EmissionFactors.
var Activities = []Activity{
	{ID: "ACT001", Name: "office_power", EmissionFactorID: "EF001", BaseAmount: 1000, Variance: 200},
	{ID: "ACT002", Name: "heating", EmissionFactorID: "EF010", BaseAmount: 100, Variance: 30},
	{ID: "ACT003", Name: "company_cars", EmissionFactorID: "EF020", BaseAmount: 150, Variance: 50},
	{ID: "ACT004", Name: "delivery_trucks", EmissionFactorID: "EF024", BaseAmount: 400, Variance: 100},
	{ID: "ACT005", Name: "business_flights_short", EmissionFactorID: "EF031", BaseAmount: 800, Variance: 200},
	{ID: "ACT006", Name: "business_flights_long", EmissionFactorID: "EF032", BaseAmount: 2000, Variance: 500},
	{ID: "ACT007", Name: "train_travel", EmissionFactorID: "EF034", BaseAmount: 500, Variance: 100},
	{ID: "ACT008", Name: "general_waste", EmissionFactorID: "EF040", BaseAmount: 1000, Variance: 200},
	{ID: "ACT009", Name: "recycling", EmissionFactorID: "EF042", BaseAmount: 800, Variance: 150},
	{ID: "ACT010", Name: "water_consumption", EmissionFactorID: "EF050", BaseAmount: 100, Variance: 20},
}

var Facilities = []Facility{
	{Name: "HQ", City: "New York", Country: "USA"},
	{Name: "Manufacturing Plant 1", City: "Detroit", Country: "USA"},
	{Name: "Distribution Center", City: "Chicago", Country: "USA"},
	{Name: "R&D Center", City: "Boston", Country: "USA"},
	{Name: "European Office", City: "London", Country: "UK"},
	{Name: "Asian Factory", City: "Shanghai", Country: "China"},
}

var Departments = []string{
	"Manufacturing",
	"Logistics",
	"Office Operations",
	"Research",
	"Sales",
	"IT",
}

func factorByID(id string) (EmissionFactor, bool) {
	for _, factor := range EmissionFactors {
		if factor.ID == id {
			return factor, true
		}
	}
	return EmissionFactor{}, false
}
