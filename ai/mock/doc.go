// Package mock provides test doubles for the ai package interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from a hash of the
// input, so identical text always embeds identically and tests need no
// external service.
//
//	emb := mock.NewMockEmbedder()
//	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//	count := emb.CallCount()
package mock
