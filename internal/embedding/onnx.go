//go:build cgo
// +build cgo

// Package embedding provides ONNX-based encoding (requires CGO and the
// onnxruntime shared library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/mekiki/pkg/utils"
)

// ONNXEmbedder runs CLIP-style text and image encoder models exported to
// ONNX. The two models must produce embeddings of the same dimension so that
// hybrid scores are comparable.
type ONNXEmbedder struct {
	textSession  *ort.AdvancedSession
	imageSession *ort.AdvancedSession
	dimensions   int
	maxTokens    int
	cache        *EmbeddingCache
	tokenizer    Tokenizer
	// Pre-allocated tensors for Run(); input data is updated in place and the
	// output read back, so each session runs under its own mutex.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	textOutputTensor    *ort.Tensor[float32]
	pixelTensor         *ort.Tensor[float32]
	imageOutputTensor   *ort.Tensor[float32]
	textMu              sync.Mutex
	imageMu             sync.Mutex
}

// NewONNXEmbedder creates an embedder over a text encoder and an image
// encoder model. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(textModelPath, imageModelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &ONNXEmbedder{
		dimensions: dimensions,
		maxTokens:  maxTokens,
		cache:      NewEmbeddingCache(cacheSize),
		tokenizer:  &SimpleTokenizer{},
	}
	if err := e.initTextSession(textModelPath); err != nil {
		return nil, err
	}
	if err := e.initImageSession(imageModelPath); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *ONNXEmbedder) initTextSession(modelPath string) error {
	inputIDs, attentionMask := e.tokenizer.Tokenize("", e.maxTokens)
	var err error
	e.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.maxTokens)), inputIDs)
	if err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	e.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.maxTokens)), attentionMask)
	if err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	e.textOutputTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.dimensions)), make([]float32, e.dimensions))
	if err != nil {
		return fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textSession, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor},
		[]ort.ArbitraryTensor{e.textOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create text ONNX session: %w", err)
	}
	return nil
}

func (e *ONNXEmbedder) initImageSession(modelPath string) error {
	pixels := 3 * imageInputSize * imageInputSize
	var err error
	e.pixelTensor, err = ort.NewTensor(ort.NewShape(1, 3, imageInputSize, imageInputSize), make([]float32, pixels))
	if err != nil {
		return fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	e.imageOutputTensor, err = ort.NewTensor(ort.NewShape(1, int64(e.dimensions)), make([]float32, e.dimensions))
	if err != nil {
		return fmt.Errorf("failed to create image output tensor: %w", err)
	}
	e.imageSession, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelTensor},
		[]ort.ArbitraryTensor{e.imageOutputTensor},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create image ONNX session: %w", err)
	}
	return nil
}

// EmbedText returns the unit-norm embedding for text, using the cache when
// available.
func (e *ONNXEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	cacheKey := "text:" + text
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached, nil
	}

	e.textMu.Lock()
	defer e.textMu.Unlock()

	inputIDs, attentionMask := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)

	if err := e.textSession.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}
	out := e.copyOutput(e.textOutputTensor)
	e.cache.Set(cacheKey, out)
	return out, nil
}

// EmbedImage returns the unit-norm embedding for the image at path, using the
// cache when available.
func (e *ONNXEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	cacheKey := "image:" + path
	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached, nil
	}

	pixels, err := PreprocessImage(path)
	if err != nil {
		return nil, err
	}

	e.imageMu.Lock()
	defer e.imageMu.Unlock()

	copy(e.pixelTensor.GetData(), pixels)
	if err := e.imageSession.Run(); err != nil {
		return nil, fmt.Errorf("image inference failed: %w", err)
	}
	out := e.copyOutput(e.imageOutputTensor)
	e.cache.Set(cacheKey, out)
	return out, nil
}

func (e *ONNXEmbedder) copyOutput(t *ort.Tensor[float32]) []float32 {
	data := t.GetData()
	out := make([]float32, e.dimensions)
	copy(out, data[:e.dimensions])
	utils.NormalizeL2(out)
	return out
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.textSession != nil {
		err = e.textSession.Destroy()
		e.textSession = nil
	}
	if e.imageSession != nil {
		if destroyErr := e.imageSession.Destroy(); err == nil {
			err = destroyErr
		}
		e.imageSession = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDsTensor, e.attentionMaskTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDsTensor, e.attentionMaskTensor = nil, nil
	for _, t := range []*ort.Tensor[float32]{e.textOutputTensor, e.pixelTensor, e.imageOutputTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.textOutputTensor, e.pixelTensor, e.imageOutputTensor = nil, nil, nil
	return err
}
