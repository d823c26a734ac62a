package integrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SpeechTranscriber recognizes short voice notes with Google Cloud Speech.
type SpeechTranscriber struct {
	client   *speech.Client
	language string
}

// NewSpeechTranscriber dials the Speech API with an API key.
func NewSpeechTranscriber(ctx context.Context, apiKey, language string) (*SpeechTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("speech API key is empty")
	}
	client, err := speech.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &SpeechTranscriber{client: client, language: language}, nil
}

func (t *SpeechTranscriber) Close() error { return t.client.Close() }

type audioEncoding struct {
	encoding   speechpb.RecognitionConfig_AudioEncoding
	sampleRate int32
}

// encodingFor maps a MIME type to the Speech API encoding. Unknown types
// leave the encoding unspecified so the API can sniff the header.
func encodingFor(mimeType string) audioEncoding {
	mimeType, _, _ = strings.Cut(strings.ToLower(mimeType), ";")
	switch strings.TrimSpace(mimeType) {
	case "audio/ogg":
		return audioEncoding{speechpb.RecognitionConfig_OGG_OPUS, 48000}
	case "audio/mpeg", "audio/mp3":
		return audioEncoding{encoding: speechpb.RecognitionConfig_MP3}
	case "audio/wav":
		return audioEncoding{encoding: speechpb.RecognitionConfig_LINEAR16}
	case "audio/flac":
		return audioEncoding{encoding: speechpb.RecognitionConfig_FLAC}
	default:
		return audioEncoding{encoding: speechpb.RecognitionConfig_ENCODING_UNSPECIFIED}
	}
}

// Transcribe returns the top alternative of every result joined by spaces.
func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	enc := encodingFor(mimeType)
	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc.encoding,
			SampleRateHertz:            enc.sampleRate,
			LanguageCode:               t.language,
			EnableAutomaticPunctuation: true,
			Model:                      "default",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
			return "", fmt.Errorf("speech recognize (%s): %s", st.Code(), st.Message())
		}
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	return joinTranscripts(resp.GetResults()), nil
}

func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
