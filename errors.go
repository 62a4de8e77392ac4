/*
   Copyright (c) 2020, btnmasher
   All rights reserved.

   Redistribution and use in source and binary forms, with or without modification, are permitted provided that
   the following conditions are met:

   1. Redistributions of source code must retain the above copyright notice, this list of conditions and the
      following disclaimer.

   2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and
      the following disclaimer in the documentation and/or other materials provided with the distribution.

   3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or
      promote products derived from this software without specific prior written permission.

   THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED
   WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A
   PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR
   ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED
   TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
   NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
   POSSIBILITY OF SUCH DAMAGE.
*/

package dircd

// Error is a workaround to allow for immutable error strings
// which satisfy the error interface.
type Error string

func (err Error) Error() string {
	return string(err)
}

func (err Error) String() string {
	return string(err)
}

// Protocol framing errors
const (
	ErrMessageTooShort Error = "did not receive enough data from the client"
	ErrMessageTooLong  Error = "received data from the client is too long"
	ErrTagsTooLong     Error = "message tags exceeded the maximum length"
	ErrCRLF            Error = "no CRLF"
	ErrWhitespace      Error = "all whitespace"
	ErrInvalidCapCmd   Error = "invalid CAP command"
	ErrMissingParams   Error = "missing parameters"
	ErrTooManyParams   Error = "too many parameters"
)

// Registration and identity errors
const (
	ErrUserInUse      Error = "this username is currently in use"
	ErrUserRestricted Error = "this username is restricted"
	ErrUserAlreadySet Error = "you have already registered"
	ErrNotImplemented Error = "that command is not yet implemented"
	ErrNotRegistered  Error = "you must register first"
	ErrNoNickGiven    Error = "no nickname given"
	ErrNickInUse      Error = "this nickname is currently in use"
	ErrNickRestricted Error = "this nickname is restricted"
	ErrNickAlreadySet Error = "you already have that nickname"
	ErrNoSuchNick     Error = "no such nick"
	ErrNoSuchChan     Error = "no such channel"
)

// Mode system errors
const (
	ErrInsuffPerms    Error = "insufficient permissions"
	ErrUnknownMode    Error = "unknown mode"
	ErrModeAlreadySet Error = "mode already set"
	ErrModeNotSet     Error = "mode is not set"
	ErrListFull       Error = "channel list is full"
)

// Channel access policy errors
const (
	ErrInviteOnly     Error = "channel is invite-only"
	ErrBadChannelKey  Error = "bad channel key"
	ErrChannelFull    Error = "channel is full"
	ErrBanned         Error = "banned from channel"
	ErrNotRegisteredC Error = "channel requires a registered nick"
	ErrCBanned        Error = "channel name is banned"
)

// X-line registry errors
const (
	ErrXLineExists   Error = "matching line already exists"
	ErrXLineNotFound Error = "no matching line found"
)

// Result describes the outcome of a command handler, used by the router to
// decide whether to keep walking a handler chain and how to log the step.
type Result uint8

const (
	ResultSuccess Result = iota
	ResultFailure
	ResultInvalid
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Decision is returned by hook chain listeners to control whether
// subsequent listeners, or the default handling, still run.
type Decision uint8

const (
	Passthru Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Passthru:
		return "passthru"
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}
