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

package r30x

// Confirmation codes from the sensor's ACK payload. Some are overloaded
// across commands (0x0E, 0x10, 0x11); the command layer disambiguates by
// pairing the code with the command that produced it before building an
// error, rather than trying to give the byte one global meaning.
const (
	statusOK                  byte = 0x00
	statusCommError           byte = 0x01
	statusNoFinger            byte = 0x02
	statusEnrollFail          byte = 0x03
	statusImageMessy          byte = 0x06
	statusFewFeaturePoints    byte = 0x07
	statusNotMatching         byte = 0x08
	statusNoTemplateFound     byte = 0x09
	statusCreateTemplateFail  byte = 0x0A
	statusBadPosition         byte = 0x0B
	statusReadTemplateFail    byte = 0x0C
	statusDownloadCharFail    byte = 0x0D
	statusPacketResponseFail  byte = 0x0E
	statusDownloadImageFail   byte = 0x0F
	statusDeleteFail          byte = 0x10
	statusClearFail           byte = 0x11
	statusWrongPassword       byte = 0x13
	statusInvalidImage        byte = 0x15
	statusFlashWriteError     byte = 0x18
	statusInvalidRegister     byte = 0x1A
	statusAddrMismatch        byte = 0x20
)

// statusDescriptions gives every confirmation code this driver recognizes a
// short, command-agnostic description, used to render ProtocolError messages
// and for logging. Codes absent from this table are reported verbatim by
// UnknownStatusError.
var statusDescriptions = map[byte]string{
	statusOK:                 "OK",
	statusCommError:          "communication error",
	statusNoFinger:           "no finger on sensor",
	statusEnrollFail:         "failed to enroll image",
	statusImageMessy:         "image too messy",
	statusFewFeaturePoints:   "too few feature points",
	statusNotMatching:        "characteristics do not match",
	statusNoTemplateFound:    "no matching template found",
	statusCreateTemplateFail: "characteristics mismatch",
	statusBadPosition:        "invalid storage position",
	statusReadTemplateFail:   "failed to read template",
	statusDownloadCharFail:   "failed to download characteristics",
	statusPacketResponseFail: "packet-response failure",
	statusDownloadImageFail:  "failed to download image",
	statusDeleteFail:         "failed to delete template",
	statusClearFail:          "failed to clear database",
	statusWrongPassword:      "wrong password",
	statusInvalidImage:       "invalid image",
	statusFlashWriteError:    "flash write error",
	statusInvalidRegister:    "invalid register number",
	statusAddrMismatch:       "address mismatch",
}

func describeStatus(code byte) string {
	if desc, ok := statusDescriptions[code]; ok {
		return desc
	}
	return "unrecognized status code"
}

// statusError builds the error for a non-OK confirmation code that a command
// did not already handle as one of its own soft-success values. It never
// panics for any input byte, satisfying the status-dispatch totality
// property: every code either matches the universal table (ProtocolError) or
// falls through to UnknownStatusError.
func statusError(command string, code byte) error {
	if _, ok := statusDescriptions[code]; ok {
		return &ProtocolError{Command: command, Code: code}
	}
	return &UnknownStatusError{Command: command, Code: code}
}
