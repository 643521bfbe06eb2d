// Package buffer provides thread-safe buffers for log and stream data.
//
// RingBuffer is a fixed-size buffer that overwrites the oldest elements when
// full. It keeps a sliding window of the most recent data, which is what a
// kernel log ring needs.
package buffer
