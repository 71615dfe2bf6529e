package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadBytesTotal, uploadChunksTotal) }

var (
	uploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribe_upload_bytes_total",
			Help: "Bytes streamed to the upload endpoint.",
		},
	)

	uploadChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribe_upload_chunks_total",
			Help: "Chunks read from upload sources.",
		},
	)
)

func AddUpload(bytes int64, chunks int) {
	uploadBytesTotal.Add(float64(bytes))
	uploadChunksTotal.Add(float64(chunks))
}
