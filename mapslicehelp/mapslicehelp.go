package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func OrderedMapValues[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []V {
	l := make([]V, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Value
		i++
	}
	return l
}

func ReverseClone[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	l := len(s)
	c := make(S, l)
	for i := 0; i < l; i++ {
		c[l-1-i] = s[i]
	}
	return c
}
