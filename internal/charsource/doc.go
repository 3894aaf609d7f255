// Package charsource turns byte and text inputs into a pull-based sequence of
// characters for the chunk extractor.
//
// Readers fill a fixed-size block at a time and hand out one character per
// Next call, so the consumer never sees how input was buffered. In ModeText
// input is decoded as UTF-8. In ModeBytes every byte is one character, which
// gives the same characters as ModeText for ASCII input.
//
//	src, err := charsource.Open("feed.xml", charsource.ModeText, 0)
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	for ch, err := range charsource.Chars(src) {
//	    ...
//	}
package charsource
