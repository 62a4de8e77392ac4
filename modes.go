package dircd

import (
	"strconv"
	"strings"
)

// Channel simple/param mode bitmask flags. Each has a corresponding
// letter in ChanModeLetters.
const (
	CModeNoExternal uint64 = 1 << iota // n: no messages from outside the channel
	CModeTopicLock                     // t: only ops may change the topic
	CModeSecret                        // s: hidden from LIST; WHOIS still lists it
	CModeModerated                     // m: only voiced+ may speak
	CModeInviteOnly                    // i: JOIN requires an invite
	CModePrivate                       // p: hidden from LIST, shown as private
	CModeKey                           // k: join requires the channel key
	CModeLimit                         // l: capped member count
	CModeRegisteredOnly                // r: registered-only flag; stored and shown, not checked on JOIN
	CModeNoCTCP                        // C: no-CTCP flag; stored and shown, message text is not filtered
	CModeAuditorium                    // u: only ops see the member list
	CModePermanent                     // P: channel survives an empty member-map
)

// ChanModeLetters maps a mode letter to its bitmask flag, for the
// modes that don't carry a list (ban/except/invite) or a rank prefix
// (op/halfop/voice) - those are handled separately by ModeKind below.
var ChanModeLetters = map[byte]uint64{
	'n': CModeNoExternal,
	't': CModeTopicLock,
	's': CModeSecret,
	'm': CModeModerated,
	'i': CModeInviteOnly,
	'p': CModePrivate,
	'k': CModeKey,
	'l': CModeLimit,
	'r': CModeRegisteredOnly,
	'C': CModeNoCTCP,
	'u': CModeAuditorium,
	'P': CModePermanent,
}

// ModeKind classifies how a channel mode letter's argument, if any, is
// handled, per RFC2812's CHANMODES categories (A,B,C,D).
type ModeKind int

const (
	// ModeKindList modes take a mask argument on both set and unset and
	// maintain a list (b, e, I).
	ModeKindList ModeKind = iota
	// ModeKindParam modes take an argument on set but not on unset (k).
	ModeKindParam
	// ModeKindSetParam modes take an argument on set and none on unset
	// (l).
	ModeKindSetParam
	// ModeKindSimple modes never take an argument (n, t, s, m, i, p...).
	ModeKindSimple
	// ModeKindPrefix modes take a nickname argument and grant/revoke a
	// Membership rank rather than flipping a Channel bit (o, h, v).
	ModeKindPrefix
)

// ChanModeKind reports the ModeKind of a channel mode letter.
func ChanModeKind(letter byte) ModeKind {
	switch letter {
	case 'b', 'e', 'I':
		return ModeKindList
	case 'k':
		return ModeKindParam
	case 'l':
		return ModeKindSetParam
	case 'o', 'h', 'v':
		return ModeKindPrefix
	default:
		return ModeKindSimple
	}
}

// PrefixRank maps the prefix-granting mode letters to the Membership
// rank they set.
var PrefixRank = map[byte]uint8{
	'o': RankOp,
	'h': RankHalfOp,
	'v': RankVoice,
}

// listFor maps list-mode letters to the Channel field holding
// that list.
func (channel *Channel) listFor(letter byte) ListSet {
	switch letter {
	case 'b':
		return channel.BanList
	case 'e':
		return channel.ExceptList
	case 'I':
		return channel.InviteList
	default:
		return nil
	}
}

// ModeChange describes one parsed unit of a MODE command: add/remove,
// the letter, and its argument, if any.
type ModeChange struct {
	Add    bool
	Letter byte
	Arg    string
}

// ParseChannelModeChanges tokenizes a MODE command's flag string and
// argument list into a ModeChange batch. A trailing argument is
// consumed only for letters whose ModeKind requires one in the given
// direction (set vs. unset), mirroring CHANMODES categories A-D.
func ParseChannelModeChanges(flags string, args []string) ([]ModeChange, error) {
	var changes []ModeChange
	add := true
	argi := 0

	for i := 0; i < len(flags); i++ {
		letter := flags[i]

		switch letter {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}

		change := ModeChange{Add: add, Letter: letter}

		switch ChanModeKind(letter) {
		case ModeKindList:
			if argi < len(args) {
				change.Arg = args[argi]
				argi++
			}
		case ModeKindParam:
			if add {
				if argi >= len(args) {
					return nil, ErrMissingParams
				}
				change.Arg = args[argi]
				argi++
			}
		case ModeKindSetParam:
			if add {
				if argi >= len(args) {
					return nil, ErrMissingParams
				}
				change.Arg = args[argi]
				argi++
			}
		case ModeKindPrefix:
			if argi >= len(args) {
				return nil, ErrMissingParams
			}
			change.Arg = args[argi]
			argi++
		}

		changes = append(changes, change)
		if len(changes) > MaxModeChange {
			break
		}
	}

	return changes, nil
}

// RenderChannelModes formats the channel's currently-set simple/param
// modes as a MODE reply string, eg "+ntk secretkey".
func RenderChannelModes(channel *Channel) (flags string, args []string) {
	var b strings.Builder
	b.WriteByte('+')

	for _, letter := range "ntsmiprCuP" {
		if bit, ok := ChanModeLetters[byte(letter)]; ok && channel.ModeIsSet(bit) {
			b.WriteRune(letter)
		}
	}

	if channel.ModeIsSet(CModeKey) {
		b.WriteByte('k')
		args = append(args, channel.Key())
	}
	if channel.ModeIsSet(CModeLimit) {
		b.WriteByte('l')
		args = append(args, strconv.Itoa(channel.Limit()))
	}

	return b.String(), args
}
