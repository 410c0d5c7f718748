// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import "strings"

// stopWords is the standard English function-word list.
var stopWords = toSet(`a about above after again against ain all am an and any are aren aren't as at
be because been before being below between both but by can couldn couldn't d did didn didn't do does
doesn doesn't doing don don't down during each few for from further had hadn hadn't has hasn hasn't
have haven haven't having he her here hers herself him himself his how i if in into is isn isn't it
it's its itself just ll m ma me mightn mightn't more most mustn mustn't my myself needn needn't no nor
not now o of off on once only or other our ours ourselves out over own re s same shan shan't she
she's should should've shouldn shouldn't so some such t than that that'll the their theirs them
themselves then there these they this those through to too under until up ve very was wasn wasn't we
were weren weren't what when where which while who whom why will with won won't wouldn wouldn't y you
you'd you'll you're you've your yours yourself yourselves`)

// commonWords are frequent in academic prose but never terminology on
// their own.
var commonWords = toSet(`also al however thus therefore hence although though whereas since via et
etc e.g i.e fig figs figure figures table tables eq eqs equation equations section sections appendix
paper papers work works study studies result results method methods approach approaches propose
proposed show shows shown use used uses using based new different various several many much one two
three first second third well may might can could would should must however respectively example
examples case cases number numbers set sets given within without among across per large small high
low good better best term terms way ways part parts type types find found see seen note provide
provides provided obtain obtained make makes made time times data value values order present
presented consider considered`)

func toSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(list) {
		set[w] = true
	}
	return set
}

// IsStopWord reports whether word is an English function word.
func IsStopWord(word string) bool {
	return stopWords[strings.ToLower(word)]
}

// IsCommonWord reports whether word is a function word or a frequent
// academic filler word that is not terminology by itself.
func IsCommonWord(word string) bool {
	w := strings.ToLower(word)
	return stopWords[w] || commonWords[w]
}
