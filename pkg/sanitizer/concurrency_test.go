package sanitizer

import (
	"reflect"
	"sync"
	"testing"
)

func TestSanitize_ConcurrentUse(t *testing.T) {
	shared := rawExtraction()
	shared["empresa_emissora"].(map[string]any)["nome"] = "ConstruÃ§Ã£o Ltda"

	wantInvoice := Sanitize(shared)
	wantKey := NormalizeKey("  Descrição do Serviço ")
	wantText := FixMojibake("SÃ£o Paulo")

	const workers = 32
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if got := Sanitize(shared); !reflect.DeepEqual(got, wantInvoice) {
					errs <- "Sanitize result differs between goroutines"
					return
				}
				if got := NormalizeKey("  Descrição do Serviço "); got != wantKey {
					errs <- "NormalizeKey = " + got + ", want " + wantKey
					return
				}
				if got := FixMojibake("SÃ£o Paulo"); got != wantText {
					errs <- "FixMojibake = " + got + ", want " + wantText
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
	if wantText != "São Paulo" {
		t.Errorf("FixMojibake baseline = %q", wantText)
	}
	if wantInvoice.Issuer.Name != "Construção Ltda" {
		t.Errorf("issuer name baseline = %q", wantInvoice.Issuer.Name)
	}
}
