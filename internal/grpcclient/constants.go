package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	DefaultCallTimeout = 60 * time.Second
	DefaultLanguage    = "en"
)

// Inference service methods.
const (
	MethodTranscribe = "/speaklarity.inference.v1.ASR/Transcribe"
	MethodEmbed      = "/speaklarity.inference.v1.Embedding/Embed"
	MethodSynthesize = "/speaklarity.inference.v1.TTS/Synthesize"
	MethodGenerate   = "/speaklarity.inference.v1.LLM/Generate"
)
