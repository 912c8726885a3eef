// Package ranking orders the categories of one frame and assigns ranks.
//
// Items are sorted by value descending with category name ascending as the
// tie-break, so equal values always resolve in the same order. Ranks are
// dense: the first item is rank 1 and the rank only increases when the value
// changes. Truncation to the top N happens after ranking; since ranks are
// dense and the retained items are a prefix of the sorted population, the
// retained ranks are the same whether computed globally or over the prefix.
package ranking
