package feature

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	// Register decoders for the image formats the pipeline accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"

	"github.com/poiesic/datakiln/core"
)

// DetectModality sniffs the content modality from raw bytes.
// Returns ErrUnknownModality for content that is neither image, text nor
// audio.
func DetectModality(data []byte) (core.Modality, error) {
	contentType := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return core.ModalityImage, nil
	case strings.HasPrefix(contentType, "audio/"):
		return core.ModalityAudio, nil
	case strings.HasPrefix(contentType, "text/"):
		return core.ModalityText, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownModality, contentType)
	}
}

// Extract computes the feature record for asset bytes of a known modality.
// Pure and side-effect free; the embedding is left unset (no-embedding
// marker) for a caller with a model to fill in. Corrupt or unsupported
// input fails with *ExtractionError.
func Extract(id core.AssetID, data []byte, modality core.Modality) (*core.FeatureRecord, error) {
	if id == "" {
		return nil, extractionErr(id, modality, core.ErrEmptyAssetID)
	}
	if len(data) == 0 {
		return nil, extractionErr(id, modality, errors.New("empty content"))
	}

	record := &core.FeatureRecord{
		AssetID:  id,
		Modality: modality,
		Meta:     core.FeatureMeta{ByteSize: int64(len(data))},
	}

	switch modality {
	case core.ModalityImage:
		if err := extractImage(record, data); err != nil {
			return nil, extractionErr(id, modality, err)
		}
	case core.ModalityText:
		if err := extractText(record, data); err != nil {
			return nil, extractionErr(id, modality, err)
		}
	case core.ModalityAudio:
		if err := extractAudio(record, data); err != nil {
			return nil, extractionErr(id, modality, err)
		}
	default:
		return nil, extractionErr(id, modality, core.ErrInvalidModality)
	}

	return record, nil
}

// extractImage decodes the image and computes its perceptual fingerprint.
func extractImage(record *core.FeatureRecord, data []byte) error {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return fmt.Errorf("perceptual hash: %w", err)
	}

	record.Fingerprint = hash.GetHash()
	record.HasFingerprint = true
	record.Meta.Format = format
	record.Meta.Width = img.Bounds().Dx()
	record.Meta.Height = img.Bounds().Dy()
	return nil
}

// extractText validates the bytes as UTF-8 and records word count and a
// coarse language tag.
func extractText(record *core.FeatureRecord, data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("invalid utf-8 text")
	}

	text := string(data)
	record.Meta.WordCount = len(strings.Fields(text))
	record.Meta.Lang = detectLang(text)
	return nil
}

// detectLang is a coarse tag, not a language identifier: pure-ASCII text is
// assumed English, everything else is tagged undetermined.
func detectLang(text string) string {
	for _, r := range text {
		if r > unicode.MaxASCII {
			return "und"
		}
	}
	return "en"
}

// wavHeaderSize is the canonical RIFF/WAVE header length.
const wavHeaderSize = 44

// extractAudio parses the canonical WAV header for sample rate and
// duration. Only PCM WAV is supported.
func extractAudio(record *core.FeatureRecord, data []byte) error {
	if len(data) < wavHeaderSize {
		return errors.New("truncated wav header")
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return errors.New("not a riff/wave file")
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if sampleRate == 0 || byteRate == 0 {
		return errors.New("invalid wav rates")
	}

	payload := int64(len(data) - wavHeaderSize)
	record.Meta.Format = "wav"
	record.Meta.SampleRate = int(sampleRate)
	record.Meta.DurationMS = payload * 1000 / int64(byteRate)
	return nil
}
