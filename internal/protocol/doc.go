// Package protocol implements the wire protocol spoken by the eva wearable
// alarm over its BLE link service.
//
// Every message is a single frame:
//
//	0xAA | CMD(1 byte) | LEN(1 byte) | DATA(LEN bytes) | 0x55
//
// Frames travel in both directions: commands are written to the device's
// write characteristic, responses and unsolicited notifications arrive on
// the notify characteristic. The codec never panics on untrusted input;
// malformed frames are reported as typed errors the caller can drop.
package protocol
