package rules

import "encoding/json"

type object = map[string]any

func tagged(name string, payload object) object {
	return object{
		"type":                 "object",
		"required":             []string{name},
		"properties":           object{name: payload},
		"additionalProperties": false,
	}
}

func literal(name string) object {
	return object{"type": "string", "enum": []string{name}}
}

// Schema returns the JSON schema of the rules file, pretty printed.
func Schema() string {
	tolerance := object{"type": "number", "minimum": 0}
	column := object{"type": "integer", "minimum": 0}
	text := object{"type": "string"}

	mode := object{
		"oneOf": []object{
			tagged("Absolute", tolerance),
			tagged("Relative", tolerance),
			literal("Ignore"),
		},
	}

	preprocessor := object{
		"oneOf": []object{
			literal("ExtractHeaders"),
			tagged("DeleteColumnByNumber", column),
			tagged("DeleteColumnByName", text),
			tagged("DeleteRowByNumber", column),
			tagged("DeleteRowByRegex", text),
			tagged("SortByColumnName", text),
			tagged("SortByColumnNumber", column),
		},
	}

	char := object{"type": "string", "minLength": 1, "maxLength": 1}

	csv := object{
		"type":     "object",
		"required": []string{"comparison_modes"},
		"properties": object{
			"field_delimiter":         char,
			"decimal_separator":       char,
			"comparison_modes":        object{"type": "array", "items": object{"$ref": "#/definitions/Mode"}},
			"exclude_field_regex":     text,
			"require_equal_row_count": object{"type": "boolean"},
			"preprocessing":           object{"type": "array", "items": object{"$ref": "#/definitions/Preprocessor"}},
		},
		"additionalProperties": false,
	}

	hash := object{
		"type":                 "object",
		"required":             []string{"function"},
		"properties":           object{"function": literal("Sha256")},
		"additionalProperties": false,
	}

	rule := object{
		"type":     "object",
		"required": []string{"name", "pattern_include"},
		"properties": object{
			"name":            text,
			"pattern_include": text,
			"pattern_exclude": text,
			"CSV":             object{"$ref": "#/definitions/CSVConfig"},
			"Hash":            object{"$ref": "#/definitions/HashConfig"},
		},
		"oneOf": []object{
			{"required": []string{"CSV"}},
			{"required": []string{"Hash"}},
		},
		"additionalProperties": false,
	}

	schema := object{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "ConfigurationFile",
		"type":     "object",
		"required": []string{"rules"},
		"properties": object{
			"rules": object{"type": "array", "minItems": 1, "items": object{"$ref": "#/definitions/Rule"}},
		},
		"definitions": object{
			"Rule":         rule,
			"CSVConfig":    csv,
			"HashConfig":   hash,
			"Mode":         mode,
			"Preprocessor": preprocessor,
		},
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// maps of strings, numbers and slices always encode
		panic(err)
	}
	return string(data)
}
