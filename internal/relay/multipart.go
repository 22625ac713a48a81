package relay

// Boundary separates parts of the MJPEG stream.
const Boundary = "frame"

// ContentType is the media type of the MJPEG stream response.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var (
	partHeader  = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")
	partTrailer = []byte("\r\n")
)

// Chunk wraps one JPEG image as a multipart part.
func Chunk(jpeg []byte) []byte {
	buf := make([]byte, 0, len(partHeader)+len(jpeg)+len(partTrailer))
	buf = append(buf, partHeader...)
	buf = append(buf, jpeg...)
	buf = append(buf, partTrailer...)
	return buf
}
