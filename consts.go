package mimex

const (
	Name    = "Mimex"
	Version = "0.1.0"
)

const (
	defaultMaxSize       = 10_485_760 // int64(10 << 20) // 10 Megabytes
	defaultMaxHeaderSize = 64 * 1024
	defaultCharset       = "iso-8859-1"
)
