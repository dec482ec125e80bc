// go-r30x
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-r30x.
//
// go-r30x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-r30x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-r30x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package virtualsensor emulates an R30x fingerprint sensor behind the
// driver's Transport interface. It parses the frames the driver writes,
// keeps a template library and character buffers in memory, and answers
// with byte-exact protocol replies, so integration tests can exercise whole
// workflows without hardware.
package virtualsensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	r30x "github.com/fphost/go-r30x"
)

const (
	startCode1 = 0xEF
	startCode2 = 0x01

	typeCommand = 0x01
	typeData    = 0x02
	typeAck     = 0x07
	typeEndData = 0x08
)

// Instruction bytes the emulator understands.
const (
	insReadImage        = 0x01
	insConvertImage     = 0x02
	insCompare          = 0x03
	insSearch           = 0x04
	insCreateTemplate   = 0x05
	insStoreTemplate    = 0x06
	insLoadTemplate     = 0x07
	insDownloadChar     = 0x08
	insUploadChar       = 0x09
	insDownloadImage    = 0x0A
	insDeleteTemplate   = 0x0C
	insClearDatabase    = 0x0D
	insSetSysParam      = 0x0E
	insGetSysParams     = 0x0F
	insSetPassword      = 0x12
	insVerifyPassword   = 0x13
	insRandomNumber     = 0x14
	insSetAddress       = 0x15
	insTemplateCount    = 0x1D
	insTemplateIndex    = 0x1F
)

// Status bytes the emulator emits.
const (
	stOK            = 0x00
	stNoFinger      = 0x02
	stFewFeatures   = 0x07
	stNotMatching   = 0x08
	stNotFound      = 0x09
	stCombineFail   = 0x0A
	stBadPosition   = 0x0B
	stReadFail      = 0x0C
	stDeleteFail    = 0x10
	stClearFail     = 0x11
	stWrongPassword = 0x13
)

const (
	// Capacity mirrors the R307's 1000-template library.
	Capacity = 1000

	// slotsPerPage is how many occupancy bits one index page reports.
	slotsPerPage = 256

	imageWidth  = 256
	imageHeight = 288
)

var packetSizes = [4]int{32, 64, 128, 256}

// Sensor is an in-memory R30x. It satisfies the driver's Transport
// interface; every Write is parsed as one or more frames and replies are
// staged for ReadByte.
type Sensor struct {
	// Password and DeviceAddress are the credentials the emulator checks
	// frames against.
	Password      uint32
	DeviceAddress uint32

	// FingerPresent controls what ReadImage sees. Tests flip it to drive
	// finger-wait loops; SetFingerImage sets it with a specific capture.
	FingerPresent bool

	// SecurityLevel and PacketSizeCode are the settable registers.
	SecurityLevel  uint8
	PacketSizeCode uint8
	BaudUnit       uint8

	// RandomValue is what the RNG instruction returns.
	RandomValue uint32

	library     map[int][]byte
	charBuffers [2][]byte
	imageBuffer []byte

	readBuf   []byte
	uploading int // char buffer receiving bulk data, 0 when idle
	uploadBuf []byte

	mu     sync.Mutex
	closed bool
}

// New creates a sensor with factory settings: broadcast address, zero
// password, 128-byte data frames, an empty library, no finger on the window.
func New() *Sensor {
	return &Sensor{
		DeviceAddress:  0xFFFFFFFF,
		PacketSizeCode: 2,
		SecurityLevel:  3,
		BaudUnit:       6,
		RandomValue:    0xDEADBEEF,
		library:        make(map[int][]byte),
	}
}

// SetFingerImage places a finger on the window with the given raw 4bpp
// capture stream. A nil stream selects a deterministic gradient pattern.
func (s *Sensor) SetFingerImage(stream []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream == nil {
		stream = GradientImage()
	}
	s.FingerPresent = true
	s.imageBuffer = append([]byte(nil), stream...)
}

// RemoveFinger lifts the finger; subsequent ReadImage reports no finger.
func (s *Sensor) RemoveFinger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FingerPresent = false
}

// TemplateAt returns the stored template at slot, or nil.
func (s *Sensor) TemplateAt(slot int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.library[slot]
}

// TemplateCount returns how many slots are occupied.
func (s *Sensor) TemplateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.library)
}

// Preload stores template material directly into a slot, bypassing the
// protocol, for tests that need a populated library.
func (s *Sensor) Preload(slot int, template []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.library[slot] = append([]byte(nil), template...)
}

// GradientImage returns the emulator's canonical 4bpp capture stream: a
// horizontal gradient cycling through all sixteen gray levels.
func GradientImage() []byte {
	stream := make([]byte, imageWidth*imageHeight/2)
	for i := range stream {
		hi := byte(i) & 0x0F
		lo := byte(i+1) & 0x0F
		stream[i] = hi<<4 | lo
	}
	return stream
}

// Write parses p as protocol frames and stages the replies.
func (s *Sensor) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("virtual sensor closed")
	}

	for len(p) > 0 {
		frameLen, err := s.consumeFrame(p)
		if err != nil {
			return err
		}
		p = p[frameLen:]
	}
	return nil
}

// consumeFrame handles one frame at the head of p and returns its length.
func (s *Sensor) consumeFrame(p []byte) (int, error) {
	if len(p) < 9 {
		return 0, fmt.Errorf("short frame: %d bytes", len(p))
	}
	if p[0] != startCode1 || p[1] != startCode2 {
		return 0, fmt.Errorf("bad start code %02X %02X", p[0], p[1])
	}

	typ := p[6]
	length := int(binary.BigEndian.Uint16(p[7:9]))
	total := 9 + length
	if len(p) < total {
		return 0, fmt.Errorf("truncated frame: have %d, want %d", len(p), total)
	}
	payload := p[9 : 9+length-2]

	sum := int(typ) + int(p[7]) + int(p[8])
	for _, b := range payload {
		sum += int(b)
	}
	if uint16(sum) != binary.BigEndian.Uint16(p[9+length-2:total]) {
		return 0, errors.New("frame checksum mismatch")
	}

	switch typ {
	case typeCommand:
		s.handleCommand(payload)
	case typeData, typeEndData:
		s.handleBulkData(typ, payload)
	default:
		return 0, fmt.Errorf("unexpected frame type 0x%02X", typ)
	}
	return total, nil
}

func (s *Sensor) handleBulkData(typ byte, payload []byte) {
	if s.uploading == 0 {
		return
	}
	s.uploadBuf = append(s.uploadBuf, payload...)
	if typ == typeEndData {
		s.charBuffers[s.uploading-1] = s.uploadBuf
		s.uploadBuf = nil
		s.uploading = 0
	}
}

func (s *Sensor) handleCommand(payload []byte) {
	if len(payload) == 0 {
		s.ack(stBadPosition)
		return
	}

	switch payload[0] {
	case insVerifyPassword:
		if len(payload) >= 5 && binary.BigEndian.Uint32(payload[1:5]) == s.Password {
			s.ack(stOK)
		} else {
			s.ack(stWrongPassword)
		}
	case insSetPassword:
		s.Password = binary.BigEndian.Uint32(payload[1:5])
		s.ack(stOK)
	case insSetAddress:
		s.DeviceAddress = binary.BigEndian.Uint32(payload[1:5])
		s.ack(stOK)
	case insSetSysParam:
		s.handleSetParam(payload)
	case insGetSysParams:
		s.ack(stOK, s.parameterBlock()...)
	case insTemplateIndex:
		s.handleTemplateIndex(payload)
	case insTemplateCount:
		var count [2]byte
		binary.BigEndian.PutUint16(count[:], uint16(len(s.library)))
		s.ack(stOK, count[:]...)
	case insReadImage:
		if s.FingerPresent {
			if s.imageBuffer == nil {
				s.imageBuffer = GradientImage()
			}
			s.ack(stOK)
		} else {
			s.ack(stNoFinger)
		}
	case insDownloadImage:
		s.ack(stOK)
		s.stream(s.imageBuffer)
	case insConvertImage:
		s.handleConvert(payload)
	case insCreateTemplate:
		s.handleCreate()
	case insStoreTemplate:
		s.handleStore(payload)
	case insSearch:
		s.handleSearch(payload)
	case insLoadTemplate:
		s.handleLoad(payload)
	case insDeleteTemplate:
		s.handleDelete(payload)
	case insClearDatabase:
		s.library = make(map[int][]byte)
		s.ack(stOK)
	case insRandomNumber:
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], s.RandomValue)
		s.ack(stOK, v[:]...)
	case insCompare:
		s.handleCompare()
	case insDownloadChar:
		s.handleDownloadChar(payload)
	case insUploadChar:
		s.handleUploadChar(payload)
	default:
		s.ack(stBadPosition)
	}
}

func (s *Sensor) handleSetParam(payload []byte) {
	if len(payload) < 3 {
		s.ack(stBadPosition)
		return
	}
	switch payload[1] {
	case 4:
		s.BaudUnit = payload[2]
	case 5:
		s.SecurityLevel = payload[2]
	case 6:
		s.PacketSizeCode = payload[2]
	default:
		s.ack(0x1A)
		return
	}
	s.ack(stOK)
}

func (s *Sensor) handleTemplateIndex(payload []byte) {
	if len(payload) < 2 || payload[1] > 3 {
		s.ack(stBadPosition)
		return
	}
	page := int(payload[1])
	bitmap := make([]byte, slotsPerPage/8)
	for slot := range s.library {
		if slot/slotsPerPage != page {
			continue
		}
		local := slot % slotsPerPage
		bitmap[local/8] |= 1 << (local % 8)
	}
	s.ack(stOK, bitmap...)
}

func (s *Sensor) handleConvert(payload []byte) {
	buf, ok := s.bufferIndex(payload)
	if !ok {
		s.ack(stBadPosition)
		return
	}
	if s.imageBuffer == nil {
		s.ack(stFewFeatures)
		return
	}
	s.charBuffers[buf] = deriveCharacteristics(s.imageBuffer, byte(buf+1))
	s.ack(stOK)
}

// handleCreate merges the two character buffers. Characteristics derived
// from the same capture merge; anything else is a combine failure.
func (s *Sensor) handleCreate() {
	b1, b2 := s.charBuffers[0], s.charBuffers[1]
	if b1 == nil || b2 == nil || !sameOrigin(b1, b2) {
		s.ack(stCombineFail)
		return
	}
	merged := mergeCharacteristics(b1, b2)
	s.charBuffers[0] = merged
	s.charBuffers[1] = append([]byte(nil), merged...)
	s.ack(stOK)
}

func (s *Sensor) handleStore(payload []byte) {
	if len(payload) < 4 {
		s.ack(stBadPosition)
		return
	}
	buf, ok := s.bufferIndex(payload)
	if !ok || s.charBuffers[buf] == nil {
		s.ack(stBadPosition)
		return
	}
	pos := int(binary.BigEndian.Uint16(payload[2:4]))
	if pos >= Capacity {
		s.ack(stBadPosition)
		return
	}
	s.library[pos] = append([]byte(nil), s.charBuffers[buf]...)
	s.ack(stOK)
}

func (s *Sensor) handleSearch(payload []byte) {
	if len(payload) < 6 {
		s.ack(stBadPosition)
		return
	}
	buf, ok := s.bufferIndex(payload)
	if !ok || s.charBuffers[buf] == nil {
		s.ack(stBadPosition)
		return
	}
	start := int(binary.BigEndian.Uint16(payload[2:4]))
	count := int(binary.BigEndian.Uint16(payload[4:6]))

	for pos := start; pos < start+count && pos < Capacity; pos++ {
		tpl, used := s.library[pos]
		if !used || !sameOrigin(tpl, s.charBuffers[buf]) {
			continue
		}
		reply := make([]byte, 4)
		binary.BigEndian.PutUint16(reply[0:2], uint16(pos))
		binary.BigEndian.PutUint16(reply[2:4], matchScore(tpl, s.charBuffers[buf]))
		s.ack(stOK, reply...)
		return
	}
	s.ack(stNotFound)
}

func (s *Sensor) handleLoad(payload []byte) {
	if len(payload) < 4 {
		s.ack(stBadPosition)
		return
	}
	buf, ok := s.bufferIndex(payload)
	if !ok {
		s.ack(stBadPosition)
		return
	}
	pos := int(binary.BigEndian.Uint16(payload[2:4]))
	tpl, used := s.library[pos]
	if !used {
		s.ack(stReadFail)
		return
	}
	s.charBuffers[buf] = append([]byte(nil), tpl...)
	s.ack(stOK)
}

func (s *Sensor) handleDelete(payload []byte) {
	if len(payload) < 5 {
		s.ack(stBadPosition)
		return
	}
	pos := int(binary.BigEndian.Uint16(payload[1:3]))
	count := int(binary.BigEndian.Uint16(payload[3:5]))
	if pos >= Capacity || count == 0 {
		s.ack(stDeleteFail)
		return
	}
	for i := pos; i < pos+count && i < Capacity; i++ {
		delete(s.library, i)
	}
	s.ack(stOK)
}

func (s *Sensor) handleCompare() {
	b1, b2 := s.charBuffers[0], s.charBuffers[1]
	if b1 == nil || b2 == nil {
		s.ack(stBadPosition)
		return
	}
	if !sameOrigin(b1, b2) {
		s.ack(stNotMatching)
		return
	}
	var reply [2]byte
	binary.BigEndian.PutUint16(reply[:], matchScore(b1, b2))
	s.ack(stOK, reply[:]...)
}

func (s *Sensor) handleDownloadChar(payload []byte) {
	buf, ok := s.bufferIndex(payload)
	if !ok || s.charBuffers[buf] == nil {
		s.ack(stBadPosition)
		return
	}
	s.ack(stOK)
	s.stream(s.charBuffers[buf])
}

func (s *Sensor) handleUploadChar(payload []byte) {
	buf, ok := s.bufferIndex(payload)
	if !ok {
		s.ack(stBadPosition)
		return
	}
	s.uploading = buf + 1
	s.uploadBuf = nil
	s.ack(stOK)
}

func (s *Sensor) bufferIndex(payload []byte) (int, bool) {
	if len(payload) < 2 || payload[1] < 1 || payload[1] > 2 {
		return 0, false
	}
	return int(payload[1]) - 1, true
}

// ack stages an acknowledgement frame carrying status plus extra payload.
func (s *Sensor) ack(status byte, extra ...byte) {
	payload := append([]byte{status}, extra...)
	s.readBuf = append(s.readBuf, s.encodeFrame(typeAck, payload)...)
}

// stream stages data as DATA frames bounded by the negotiated packet size,
// closing with END_DATA.
func (s *Sensor) stream(data []byte) {
	maxPacket := packetSizes[s.PacketSizeCode&3]
	for from := 0; from < len(data); from += maxPacket {
		to := from + maxPacket
		typ := byte(typeData)
		if to >= len(data) {
			to = len(data)
			typ = typeEndData
		}
		s.readBuf = append(s.readBuf, s.encodeFrame(typ, data[from:to])...)
	}
	if len(data) == 0 {
		s.readBuf = append(s.readBuf, s.encodeFrame(typeEndData, nil)...)
	}
}

func (s *Sensor) encodeFrame(typ byte, payload []byte) []byte {
	length := len(payload) + 2
	out := make([]byte, 0, 9+length)
	out = append(out, startCode1, startCode2)
	var addr [4]byte
	binary.BigEndian.PutUint32(addr[:], s.DeviceAddress)
	out = append(out, addr[:]...)
	out = append(out, typ, byte(length>>8), byte(length))

	sum := int(typ) + length>>8 + length&0xFF
	for _, b := range payload {
		sum += int(b)
	}
	out = append(out, payload...)
	out = append(out, byte(sum>>8), byte(sum))
	return out
}

// ReadByte pops one staged reply byte; an empty buffer is a timeout.
func (s *Sensor) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("virtual sensor closed")
	}
	if len(s.readBuf) == 0 {
		return 0, r30x.NewTimeoutError("read", "virtual")
	}
	b := s.readBuf[0]
	s.readBuf = s.readBuf[1:]
	return b, nil
}

// SetTimeout is a no-op; the emulator never waits.
func (*Sensor) SetTimeout(time.Duration) error { return nil }

// Close marks the sensor closed.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsConnected reports whether Close has been called.
func (s *Sensor) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Type returns the mock transport type.
func (*Sensor) Type() r30x.TransportType { return r30x.TransportMock }

func (s *Sensor) parameterBlock() []byte {
	block := make([]byte, 16)
	binary.BigEndian.PutUint16(block[0:2], 0)
	binary.BigEndian.PutUint16(block[2:4], 0x0009)
	binary.BigEndian.PutUint16(block[4:6], Capacity)
	binary.BigEndian.PutUint16(block[6:8], uint16(s.SecurityLevel))
	binary.BigEndian.PutUint32(block[8:12], s.DeviceAddress)
	binary.BigEndian.PutUint16(block[12:14], uint16(s.PacketSizeCode))
	binary.BigEndian.PutUint16(block[14:16], uint16(s.BaudUnit))
	return block
}

// deriveCharacteristics builds deterministic template material from a
// capture. The first 32 bytes identify the capture so the emulator can judge
// later whether two buffers came from the same finger.
func deriveCharacteristics(image []byte, salt byte) []byte {
	char := make([]byte, 512)
	var h uint32 = 2166136261
	for _, b := range image {
		h = (h ^ uint32(b)) * 16777619
	}
	binary.BigEndian.PutUint32(char[0:4], h)
	for i := 4; i < 32; i++ {
		char[i] = byte(h >> (uint(i) % 24))
	}
	for i := 32; i < len(char); i++ {
		char[i] = byte(i) ^ salt
	}
	return char
}

// mergeCharacteristics combines two buffers into a template that keeps the
// shared origin marker.
func mergeCharacteristics(b1, b2 []byte) []byte {
	merged := make([]byte, len(b1))
	copy(merged, b1)
	for i := 32; i < len(merged) && i < len(b2); i++ {
		merged[i] = b1[i] ^ b2[i]
	}
	return merged
}

// sameOrigin reports whether two buffers carry the same capture marker.
func sameOrigin(a, b []byte) bool {
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return binary.BigEndian.Uint32(a[0:4]) == binary.BigEndian.Uint32(b[0:4])
}

// matchScore is a deterministic score derived from the capture marker.
func matchScore(a, _ []byte) uint16 {
	score := uint16(binary.BigEndian.Uint32(a[0:4]) % 400)
	return score + 100
}
