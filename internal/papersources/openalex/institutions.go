package openalex

import (
	"math/rand/v2"
	"strings"
)

// Institution is an OpenAlex institution.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// swissUniversities lists the swissuniversities member institutions.
var swissUniversities = []Institution{
	{ID: "https://openalex.org/I5124864", DisplayName: "École Polytechnique Fédérale de Lausanne"},
	{ID: "https://openalex.org/I35440088", DisplayName: "ETH Zurich"},
	{ID: "https://openalex.org/I1850255", DisplayName: "University of Basel"},
	{ID: "https://openalex.org/I118564535", DisplayName: "University of Bern"},
	{ID: "https://openalex.org/I154338468", DisplayName: "University of Fribourg"},
	{ID: "https://openalex.org/I114457229", DisplayName: "University of Geneva"},
	{ID: "https://openalex.org/I97565354", DisplayName: "University of Lausanne"},
	{ID: "https://openalex.org/I161941770", DisplayName: "University of Lucerne"},
	{ID: "https://openalex.org/I57825437", DisplayName: "University of Neuchâtel"},
	{ID: "https://openalex.org/I202963720", DisplayName: "University of St. Gallen"},
	{ID: "https://openalex.org/I57201433", DisplayName: "Università della Svizzera italiana"},
	{ID: "https://openalex.org/I202697423", DisplayName: "University of Zurich"},
	{ID: "https://openalex.org/I130692619", DisplayName: "Bern University of Applied Sciences"},
	{ID: "https://openalex.org/I4210120439", DisplayName: "University of Applied Sciences of the Grisons"},
	{ID: "https://openalex.org/I2972652528", DisplayName: "University of Applied Sciences and Arts Northwestern Switzerland"},
	{ID: "https://openalex.org/I173439891", DisplayName: "University of Applied Sciences and Arts Western Switzerland"},
	{ID: "https://openalex.org/I81007117", DisplayName: "Lucerne University of Applied Sciences and Arts"},
	{ID: "https://openalex.org/I3132934759", DisplayName: "Kalaidos University of Applied Sciences"},
	{ID: "https://openalex.org/I4210129390", DisplayName: "Ostschweizer Fachhochschule OST"},
	{ID: "https://openalex.org/I15196421", DisplayName: "University of Applied Sciences and Arts of Southern Switzerland"},
	{ID: "https://openalex.org/I64152125", DisplayName: "Zurich University of the Arts"},
	{ID: "https://openalex.org/I200744771", DisplayName: "ZHAW Zurich University of Applied Sciences"},
	{ID: "https://openalex.org/I4210101117", DisplayName: "Haute École Pédagogique BEJUNE"},
	{ID: "https://openalex.org/I4210106586", DisplayName: "Haute École Pédagogique du Canton de Vaud"},
	{ID: "https://openalex.org/I4210141884", DisplayName: "Pädagogische Hochschule Wallis"},
	{ID: "https://openalex.org/I4210137605", DisplayName: "Haute École Pédagogique Fribourg"},
	{ID: "https://openalex.org/I4210143584", DisplayName: "NMS Berne"},
	{ID: "https://openalex.org/I4210086400", DisplayName: "University of Teacher Education in Special Needs"},
	{ID: "https://openalex.org/I4210117930", DisplayName: "Pädagogische Hochschule Graubünden"},
	{ID: "https://openalex.org/I4210160491", DisplayName: "Pädagogische Hochschule Bern"},
	{ID: "https://openalex.org/I4210112078", DisplayName: "University of Teacher Education Lucerne"},
	{ID: "https://openalex.org/I4210158813", DisplayName: "St.Gallen University of Teacher Education"},
	{ID: "https://openalex.org/I4210139224", DisplayName: "Pädagogische Hochschule Schaffhausen"},
	{ID: "https://openalex.org/I4210095907", DisplayName: "Schwyz University of Teacher Education"},
	{ID: "https://openalex.org/I4210138261", DisplayName: "Thurgau University of Teacher Education"},
	{ID: "https://openalex.org/I4210111868", DisplayName: "Zurich University of Teacher Education"},
	{ID: "https://openalex.org/I4210146564", DisplayName: "University of Teacher Education Zug"},
	{ID: "https://openalex.org/I4210097053", DisplayName: "Swiss Federal University for Vocational Education and Training SFUVET"},
}

// SwissUniversities returns a copy of the swissuniversities member catalog.
func SwissUniversities() []Institution {
	out := make([]Institution, len(swissUniversities))
	copy(out, swissUniversities)
	return out
}

// RandomInstitution picks one swissuniversities member at random.
func RandomInstitution() Institution {
	return swissUniversities[rand.IntN(len(swissUniversities))]
}

// LookupInstitution finds a catalog entry by display name (case-insensitive)
// or by OpenAlex id, with or without the https://openalex.org/ prefix.
func LookupInstitution(key string) (Institution, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Institution{}, false
	}
	short := strings.TrimPrefix(key, openAlexIDPrefix)
	for _, inst := range swissUniversities {
		if strings.EqualFold(inst.DisplayName, key) || strings.TrimPrefix(inst.ID, openAlexIDPrefix) == short {
			return inst, true
		}
	}
	return Institution{}, false
}
