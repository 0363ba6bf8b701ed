package core

// Serial identifies a point on the GPU timeline. Serials are issued in
// strictly increasing order and a serial reported as finished implies every
// lower serial is finished too.
type Serial uint64

// SerialSource hands out the serial that work recorded right now will be
// submitted with.
type SerialSource interface {
	CurrentSerial() Serial
}
