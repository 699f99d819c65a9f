package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already canonical", input: "numero_fatura", want: "numero_fatura"},
		{name: "accented c and a", input: "descrição", want: "descricao"},
		{name: "accented a", input: "valor_unitário_centavos", want: "valor_unitario_centavos"},
		{name: "surrounding whitespace", input: "  cliente\t", want: "cliente"},
		{name: "inner spaces", input: "numero fatura", want: "numero_fatura"},
		{name: "uppercase accent", input: "Número", want: "Numero"},
		{name: "ligature decomposes", input: "ﬁle", want: "file"},
		{name: "emoji dropped", input: "tipo🙂", want: "tipo"},
		{name: "non latin dropped", input: "ключ_tipo", want: "_tipo"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeys_Recursive(t *testing.T) {
	input := map[string]any{
		"número fatura": "FAT-1",
		"itens": []any{
			map[string]any{
				"descrição":               "Servico A",
				"valor_unitário_centavos": 350000.0,
			},
			"not a record",
		},
		"empresa emissora": map[string]any{
			" endereço ": "Rua X",
		},
	}

	want := map[string]any{
		"numero_fatura": "FAT-1",
		"itens": []any{
			map[string]any{
				"descricao":               "Servico A",
				"valor_unitario_centavos": 350000.0,
			},
			"not a record",
		},
		"empresa_emissora": map[string]any{
			"endereco": "Rua X",
		},
	}

	got := NormalizeKeys(input)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeKeys() = %#v, want %#v", got, want)
	}

	if _, ok := input["número fatura"]; !ok {
		t.Error("NormalizeKeys must not mutate its input")
	}
}

func TestNormalizeKeys_Scalars(t *testing.T) {
	for _, v := range []any{nil, "x", 1.5, true} {
		if got := NormalizeKeys(v); !reflect.DeepEqual(got, v) {
			t.Errorf("NormalizeKeys(%#v) = %#v, want unchanged", v, got)
		}
	}
}

func TestNormalizeKeys_CollisionIsDeterministic(t *testing.T) {
	input := map[string]any{
		"descricao": "plain",
		"descrição": "accented",
	}

	for i := 0; i < 20; i++ {
		got := NormalizeKeys(input).(map[string]any)
		if len(got) != 1 {
			t.Fatalf("expected keys to collapse, got %v", got)
		}
		if got["descricao"] != "accented" {
			t.Fatalf("iteration %d: expected the key sorting last to win, got %v", i, got["descricao"])
		}
	}
}

func TestCanonicalKeySets_AreCopies(t *testing.T) {
	keys := RootKeys()
	keys[0] = "mutated"

	if RootKeys()[0] != KeyInvoiceNumber {
		t.Error("RootKeys must return a fresh slice on every call")
	}
	if len(RootKeys()) != 9 || len(PartyKeys()) != 3 || len(LineItemKeys()) != 4 || len(TaxKeys()) != 2 {
		t.Error("unexpected canonical key set sizes")
	}
}
