package usecase

import "github.com/primerjalnik/backend/internal/domain"

// DefaultLexicon returns the built-in Slovenian grocery lexicon. Every call
// returns a fresh copy.
func DefaultLexicon() domain.Lexicon {
	return domain.Lexicon{
		// Retailer and private-label names that say nothing about the product
		NoiseWords: []string{
			"spar", "natura", "mercator", "tus", "hofer", "lidl", "eurospin",
			"jager", "budget", "clever", "pilos", "cenejse", "izbrano",
			"akcija", "novo", "ugodno",
		},
		Brands: []string{
			"milka", "nutella", "ljubljanske mlekarne", "alpsko", "pomurske mlekarne",
			"kras", "perutnina ptuj", "panvita", "gorenjka", "barcaffe", "podravka",
			"argeta", "fructal", "radenska", "zlato polje", "ceneta", "coca cola",
			"pepsi", "lindt", "kinder", "ferrero", "barilla", "dr oetker",
			"pampers", "huggies", "tena", "molfix", "nivea", "dm", "zito",
			"mlinotest", "droga", "franck", "nestle", "danone", "meggle",
			"ljubljanske", "vindija", "dukat", "jana", "cockta",
		},
		Categories: []domain.CategoryRule{
			{Name: "mlecni izdelki", Keywords: []string{"mlek", "jogurt", "skut", "smetan", "kefir", "maslo", "sirni"}},
			{Name: "sladkarije", Keywords: []string{"cokolad", "bonbon", "piskot", "napolitank", "praline", "bombon"}},
			{Name: "namazi", Keywords: []string{"namaz", "marmelad", "dzem", "med", "pasteta"}},
			{Name: "pijace", Keywords: []string{"sok", "voda", "pivo", "vino", "napitek", "nektar", "kava", "caj"}},
			{Name: "suho sadje", Keywords: []string{"marelic", "rozin", "sliv", "brusnic", "datlj", "fig"}},
			{Name: "testenine", Keywords: []string{"testenin", "spaget", "penne", "makaron", "fusill"}},
			{Name: "moka in zita", Keywords: []string{"moka", "riz", "zdrob", "kosmic", "musli"}},
			{Name: "meso", Keywords: []string{"piscan", "puran", "govej", "svinj", "salam", "hrenovk", "sunk"}},
			{Name: "sadje in zelenjava", Keywords: []string{"jabolk", "banan", "paradiznik", "krompir", "cebul", "solat"}},
			{Name: "higiena", Keywords: []string{"plenic", "vlazilni", "robck", "sampon", "milo", "zobn"}},
		},
		Flavors: []string{
			"cokolad", "vanilij", "lesnik", "jagod", "malin", "banan", "kakav",
			"karamel", "kokos", "limon", "pomaranc", "mandelj", "visnj", "borovnic",
			"breskev", "marelic", "jabolk", "cimet", "mint", "stracciatell",
		},
		Derivatives: []string{
			"namaz", "preliv", "sirup", "omak", "krem", "polnil", "aroma",
			"puding", "sladoled", "napitek", "desert",
		},
		StopWords: []string{
			"za", "in", "z", "s", "iz", "na", "v", "ali", "od", "do", "pri", "brez",
		},
		Audience: domain.AudienceLexicon{
			ChildMarkers: []string{
				"otrok", "otroke", "otroski", "otroska", "baby", "bebi", "dojenck", "junior", "kids",
			},
			AdultMarkers: []string{
				"odrasl", "odrasle", "inkontinenc", "senior",
			},
			ChildDefaultTerms: []string{
				"plenic", "duda", "steklenick", "kasic",
			},
		},
	}
}
