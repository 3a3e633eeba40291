package rtt

import "errors"

var (
	// ErrChannelDiscoveryFailed means the target never reported an RTT
	// buffer count within the retry budget. Fatal to Start.
	ErrChannelDiscoveryFailed = errors.New("rtt: channel discovery failed")

	// ErrChannelOutOfRange means a requested channel exceeds the
	// discovered buffer count. Fatal to Start.
	ErrChannelOutOfRange = errors.New("rtt: channel out of range")

	// ErrNoTransmitChannel is returned by Transmit when the relay was
	// started without a down channel.
	ErrNoTransmitChannel = errors.New("rtt: no transmit channel armed")

	// ErrInterruptTimeout is reported through the error callback when
	// an isolated interrupt byte got no response from the target within
	// the watchdog timeout.
	ErrInterruptTimeout = errors.New("rtt: target did not respond to interrupt")
)
