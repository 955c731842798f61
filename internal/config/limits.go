package config

const (
	// MaxIDLength is the maximum length for client-supplied chat/message ids.
	// Limited to 64 to fit comfortably in VARCHAR columns; server-generated
	// ids are UUIDs (36 chars).
	MaxIDLength = 64

	// MaxPartsPerMessage is the maximum number of parts accepted in a single
	// message upsert. Streaming re-upserts replace the whole sequence, so this
	// bounds the size of one transactional bulk insert.
	MaxPartsPerMessage = 1000

	// MaxToolCallIDLength is the maximum length for engine-assigned tool call
	// ids (Anthropic ids are "toolu_" + 24 chars; leave headroom).
	MaxToolCallIDLength = 128
)
