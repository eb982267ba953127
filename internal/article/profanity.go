package article

import (
	"regexp"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// profanityTokens is the fixed blocklist applied to article titles. Matching
// is case-insensitive on whole words.
var profanityTokens = []string{
	"anal", "ballsack", "bastard", "bitch", "blowjob", "boner", "boob",
	"bullshit", "clit", "cock", "cunt", "dick", "dildo", "dyke", "fag",
	"faggot", "fuck", "fucker", "fucking", "handjob", "jizz", "kike",
	"milf", "motherfucker", "nigga", "nigger", "porn", "porno", "pussy",
	"retard", "rimjob", "shit", "slut", "spic", "tits", "twat", "wank",
	"whore",
}

var (
	profanityOnce    sync.Once
	profanityMatcher *ahocorasick.Matcher
	profanityBounds  []*regexp.Regexp
)

func initProfanity() {
	profanityMatcher = ahocorasick.NewStringMatcher(profanityTokens)
	profanityBounds = make([]*regexp.Regexp, len(profanityTokens))
	for i, tok := range profanityTokens {
		profanityBounds[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(tok) + `\b`)
	}
}

// ContainsProfanity reports whether s contains a blocklisted token as a whole
// word. The Aho-Corasick pass finds candidate tokens in one scan; the boundary
// check rejects substring hits inside clean words.
func ContainsProfanity(s string) bool {
	profanityOnce.Do(initProfanity)

	lower := strings.ToLower(s)
	for _, idx := range profanityMatcher.Match([]byte(lower)) {
		if profanityBounds[idx].MatchString(lower) {
			return true
		}
	}
	return false
}
