package yggdrasil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

const (
	TexturesPropertyName = "textures"

	ModelClassic = "classic"
	ModelSlim    = "slim"
)

type ProfileResponse struct {
	Id    string      `json:"id"`
	Name  string      `json:"name"`
	Props []*Property `json:"properties"`
}

type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// TexturesProp is the document encoded into the "textures" property.
// The field order is the serialization order and must not change.
type TexturesProp struct {
	Timestamp   int64     `json:"timestamp"`
	ProfileID   string    `json:"profileId"`
	ProfileName string    `json:"profileName"`
	Textures    *Textures `json:"textures"`
}

type Textures struct {
	Skin *SkinTexture `json:"SKIN,omitempty"`
	Cape *CapeTexture `json:"CAPE,omitempty"`
}

type SkinTexture struct {
	Url      string       `json:"url"`
	Metadata SkinMetadata `json:"metadata"`
}

// SkinMetadata is rendered as {} for the classic model. Clients treat a missing
// "model" key as the default arms.
type SkinMetadata struct {
	Model string `json:"model,omitempty"`
}

type CapeTexture struct {
	Url string `json:"url"`
}

type ProfileInfo struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// MarshalCanonical serializes the value without whitespace between tokens and
// without escaping non-ASCII or HTML characters.
func MarshalCanonical(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}

	// Encoder always terminates the document with a newline
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// unescapeLineSeparators restores U+2028 and U+2029, which encoding/json escapes
// even with HTML escaping disabled
func unescapeLineSeparators(document []byte) []byte {
	if !bytes.Contains(document, []byte(`\u202`)) {
		return document
	}

	result := make([]byte, 0, len(document))
	for i := 0; i < len(document); i++ {
		if document[i] != '\\' || i+1 == len(document) {
			result = append(result, document[i])
			continue
		}

		if sequence := document[i+1:]; len(sequence) >= 5 && sequence[0] == 'u' {
			switch string(sequence[:5]) {
			case "u2028":
				result = append(result, "\u2028"...)
				i += 5
				continue
			case "u2029":
				result = append(result, "\u2029"...)
				i += 5
				continue
			}
		}

		// Any other escape is copied as is, so an escaped backslash is never
		// taken for the start of a sequence
		result = append(result, document[i], document[i+1])
		i++
	}

	return result
}

func EncodeTextures(textures *TexturesProp) (string, error) {
	serialized, err := MarshalCanonical(textures)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(serialized), nil
}

func DecodeTextures(encodedTextures string) (*TexturesProp, error) {
	jsonStr, err := base64.StdEncoding.DecodeString(encodedTextures)
	if err != nil {
		return nil, err
	}

	var result *TexturesProp
	err = json.Unmarshal(jsonStr, &result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (p *ProfileResponse) FindProperty(name string) *Property {
	for _, prop := range p.Props {
		if prop.Name == name {
			return prop
		}
	}

	return nil
}
