package translate

import (
	"regexp"
	"sort"
	"strings"
)

// englishToSpanish is a tiny offline dictionary. Multi-word phrases win
// over the single words they contain.
var englishToSpanish = map[string]string{
	// greetings
	"hello":   "hola",
	"hi":      "hola",
	"hey":     "oye",
	"goodbye": "adiós",
	"bye":     "adiós",
	"welcome": "bienvenido",

	// phrases
	"thank you":      "gracias",
	"thanks":         "gracias",
	"please":         "por favor",
	"excuse me":      "disculpe",
	"sorry":          "lo siento",
	"good morning":   "buenos días",
	"good afternoon": "buenas tardes",
	"good evening":   "buenas noches",
	"good night":     "buenas noches",

	// question words
	"what":  "qué",
	"where": "dónde",
	"when":  "cuándo",
	"why":   "por qué",
	"how":   "cómo",
	"who":   "quién",
	"which": "cuál",

	// verbs
	"is":      "es",
	"am":      "soy",
	"are":     "eres",
	"was":     "era",
	"were":    "eran",
	"have":    "tener",
	"has":     "tiene",
	"had":     "tenía",
	"do":      "hacer",
	"does":    "hace",
	"did":     "hizo",
	"can":     "puede",
	"could":   "podría",
	"will":    "será",
	"would":   "sería",
	"should":  "debería",
	"may":     "puede",
	"might":   "podría",
	"must":    "debe",
	"want":    "querer",
	"wants":   "quiere",
	"need":    "necesitar",
	"needs":   "necesita",
	"like":    "gustar",
	"likes":   "gusta",
	"love":    "amar",
	"loves":   "ama",
	"hate":    "odiar",
	"hates":   "odia",
	"speak":   "hablar",
	"speaks":  "habla",
	"talking": "hablando",
	"saying":  "diciendo",
	"said":    "dijo",

	// pronouns
	"i":      "yo",
	"you":    "tú",
	"he":     "él",
	"she":    "ella",
	"it":     "eso",
	"we":     "nosotros",
	"they":   "ellos",
	"me":     "yo",
	"my":     "mi",
	"mine":   "mío",
	"your":   "tu",
	"yours":  "tuyo",
	"his":    "suyo",
	"her":    "su",
	"hers":   "suya",
	"its":    "su",
	"our":    "nuestro",
	"ours":   "nuestro",
	"their":  "su",
	"theirs": "suyo",

	// articles and prepositions
	"the":     "el",
	"a":       "un",
	"an":      "un",
	"of":      "de",
	"to":      "a",
	"in":      "en",
	"on":      "en",
	"at":      "en",
	"by":      "por",
	"with":    "con",
	"without": "sin",
	"from":    "de",
	"for":     "para",

	// nouns
	"person":   "persona",
	"people":   "personas",
	"thing":    "cosa",
	"things":   "cosas",
	"time":     "tiempo",
	"day":      "día",
	"days":     "días",
	"week":     "semana",
	"month":    "mes",
	"year":     "año",
	"hour":     "hora",
	"minute":   "minuto",
	"second":   "segundo",
	"place":    "lugar",
	"way":      "manera",
	"man":      "hombre",
	"woman":    "mujer",
	"child":    "niño",
	"children": "niños",
	"world":    "mundo",
	"country":  "país",
	"city":     "ciudad",
	"home":     "casa",
	"house":    "casa",
	"room":     "habitación",
	"office":   "oficina",
	"school":   "escuela",
	"work":     "trabajo",
	"job":      "trabajo",
	"car":      "coche",
	"book":     "libro",
	"movie":    "película",
	"food":     "comida",
	"water":    "agua",
	"friend":   "amigo",
	"family":   "familia",
	"mother":   "madre",
	"father":   "padre",
	"sister":   "hermana",
	"brother":  "hermano",
	"son":      "hijo",
	"daughter": "hija",

	// adjectives
	"good":      "bueno",
	"bad":       "malo",
	"big":       "grande",
	"small":     "pequeño",
	"new":       "nuevo",
	"old":       "viejo",
	"happy":     "feliz",
	"sad":       "triste",
	"beautiful": "hermoso",
	"handsome":  "guapo",
	"ugly":      "feo",
	"easy":      "fácil",
	"difficult": "difícil",
	"important": "importante",
	"expensive": "caro",
	"cheap":     "barato",
	"hot":       "caliente",
	"cold":      "frío",
	"warm":      "cálido",
	"cool":      "fresco",

	// time
	"today":     "hoy",
	"tomorrow":  "mañana",
	"yesterday": "ayer",
	"now":       "ahora",
	"later":     "más tarde",
	"soon":      "pronto",
	"always":    "siempre",
	"never":     "nunca",
	"sometimes": "a veces",
	"morning":   "mañana",
	"afternoon": "tarde",
	"evening":   "noche",
	"night":     "noche",

	// numbers
	"one":   "uno",
	"two":   "dos",
	"three": "tres",
	"four":  "cuatro",
	"five":  "cinco",
	"six":   "seis",
	"seven": "siete",
	"eight": "ocho",
	"nine":  "nueve",
	"ten":   "diez",

	"test":    "prueba",
	"testing": "probando",
}

var dictionaryRegex = buildDictionaryRegex(englishToSpanish)

// buildDictionaryRegex orders alternatives longest first so a phrase
// matches before any of its words. Replacement is a single pass; output
// is never translated again.
func buildDictionaryRegex(dict map[string]string) *regexp.Regexp {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for i, k := range keys {
		keys[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(keys, "|") + `)\b`)
}

// Fallback is the offline translation used when the upstream model is
// unavailable. Spanish gets a lower-cased dictionary substitution, every
// other language is tagged with its code.
func Fallback(text, lang string) string {
	if lang != DefaultLanguage {
		return "[" + lang + "] " + text
	}
	return dictionaryRegex.ReplaceAllStringFunc(strings.ToLower(text), func(m string) string {
		return englishToSpanish[m]
	})
}
