package validators

import "go.mongodb.org/mongo-driver/bson"

// integer accepts both BSON widths; the driver writes int64 fields as long.
var integer = bson.M{"bsonType": bson.A{"int", "long"}}

var party = bson.M{
	"bsonType":             "object",
	"required":             []string{"nome", "cnpj", "endereco"},
	"additionalProperties": false,
	"properties": bson.M{
		"nome":     bson.M{"bsonType": "string"},
		"cnpj":     bson.M{"bsonType": "string"},
		"endereco": bson.M{"bsonType": "string"},
	},
}

var InvoiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"source_file",
			"mode",
			"invoice",
			"calculated_subtotal_centavos",
			"subtotal_mismatch",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"source_file": bson.M{
				"bsonType": "string",
			},

			"mode": bson.M{
				"bsonType": "string",
				"enum": []string{
					"agent",
					"schema",
					"raw",
				},
			},

			"calculated_subtotal_centavos": integer,

			"subtotal_mismatch": bson.M{
				"bsonType": "bool",
			},

			"warnings": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"invoice": bson.M{
				"bsonType": "object",
				"required": []string{
					"numero_fatura",
					"data_emissao",
					"data_vencimento",
					"empresa_emissora",
					"cliente",
					"itens",
					"tributos",
					"subtotal_itens_centavos",
					"valor_total_fatura_centavos",
				},
				"additionalProperties": false,
				"properties": bson.M{
					"numero_fatura":    bson.M{"bsonType": "string"},
					"data_emissao":     bson.M{"bsonType": "string"},
					"data_vencimento":  bson.M{"bsonType": "string"},
					"empresa_emissora": party,
					"cliente":          party,

					"itens": bson.M{
						"bsonType": "array",
						"items": bson.M{
							"bsonType":             "object",
							"required":             []string{"descricao", "quantidade", "valor_unitario_centavos", "valor_total_item_centavos"},
							"additionalProperties": false,
							"properties": bson.M{
								"descricao":                 bson.M{"bsonType": "string"},
								"quantidade":                integer,
								"valor_unitario_centavos":   integer,
								"valor_total_item_centavos": integer,
							},
						},
					},

					"tributos": bson.M{
						"bsonType": "array",
						"items": bson.M{
							"bsonType":             "object",
							"required":             []string{"tipo", "valor_centavos"},
							"additionalProperties": false,
							"properties": bson.M{
								"tipo":           bson.M{"bsonType": "string"},
								"valor_centavos": integer,
							},
						},
					},

					"subtotal_itens_centavos":     integer,
					"valor_total_fatura_centavos": integer,
				},
			},
		},
	},
}
