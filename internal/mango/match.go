package mango

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hyperledger-archives/composer-sub008/internal/ir"
)

// Condition operators appear inside a field condition.
var conditionOperators = map[string]bool{
	"$eq": true, "$ne": true, "$lt": true, "$lte": true, "$gt": true, "$gte": true,
	"$exists": true, "$type": true, "$in": true, "$nin": true, "$size": true,
	"$all": true, "$elemMatch": true, "$allMatch": true, "$regex": true,
	"$mod": true, "$not": true,
}

// Matcher evaluates selectors against documents using CouchDB view
// collation: null < false < true < numbers < strings < arrays < objects,
// with strings ordered by the Unicode Collation Algorithm.
//
// A Matcher is not safe for concurrent use.
type Matcher struct {
	coll *collate.Collator
}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{coll: collate.New(language.Und)}
}

// Match reports whether doc satisfies selector. Unknown operators and
// malformed operator arguments are errors.
func (m *Matcher) Match(selector ir.Object, doc ir.Object) (bool, error) {
	return m.matchSelector(selector, doc)
}

func (m *Matcher) matchSelector(sel ir.Object, doc ir.Value) (bool, error) {
	for _, key := range sel.SortedKeys() {
		arg := sel[key]
		var ok bool
		var err error
		switch {
		case key == "$and" || key == "$or" || key == "$nor":
			ok, err = m.matchCombination(key, arg, doc)
		case key == "$not":
			sub, isObj := arg.(ir.Object)
			if !isObj {
				return false, fmt.Errorf("$not requires a selector")
			}
			ok, err = m.matchSelector(sub, doc)
			ok = !ok
		case conditionOperators[key]:
			// Operators directly inside $elemMatch apply to the element.
			ok, err = m.applyOperator(key, doc, true, arg)
		default:
			value, present := lookup(doc, key)
			ok, err = m.matchCondition(value, present, arg)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchCombination(op string, arg ir.Value, doc ir.Value) (bool, error) {
	list, ok := arg.(ir.Array)
	if !ok {
		return false, fmt.Errorf("%s requires an array of selectors", op)
	}
	matched := 0
	for i, elem := range list {
		sub, isObj := elem.(ir.Object)
		if !isObj {
			return false, fmt.Errorf("%s[%d] must be a selector", op, i)
		}
		ok, err := m.matchSelector(sub, doc)
		if err != nil {
			return false, err
		}
		if ok {
			matched++
		}
	}
	switch op {
	case "$and":
		return matched == len(list), nil
	case "$or":
		return matched > 0, nil
	default: // $nor
		return matched == 0, nil
	}
}

// matchCondition applies a field condition. A condition object holding
// operators applies each of them; other keys select sub-fields. Any other
// value is an implicit $eq.
func (m *Matcher) matchCondition(value ir.Value, present bool, cond ir.Value) (bool, error) {
	obj, isObj := cond.(ir.Object)
	if !isObj || len(obj) == 0 {
		return present && m.Compare(value, cond) == 0, nil
	}
	for _, key := range obj.SortedKeys() {
		var ok bool
		var err error
		if isOperator(key) {
			ok, err = m.applyOperator(key, value, present, obj[key])
		} else {
			sub, subPresent := lookup(value, key)
			ok, err = m.matchCondition(sub, present && subPresent, obj[key])
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) applyOperator(op string, value ir.Value, present bool, arg ir.Value) (bool, error) {
	switch op {
	case "$exists":
		want, ok := arg.(ir.Bool)
		if !ok {
			return false, fmt.Errorf("$exists requires a boolean")
		}
		return present == bool(want), nil
	case "$not":
		ok, err := m.matchCondition(value, present, arg)
		return !ok, err
	}
	if !present {
		if !conditionOperators[op] {
			return false, fmt.Errorf("unsupported operator %s", op)
		}
		return false, nil
	}

	switch op {
	case "$eq":
		return m.Compare(value, arg) == 0, nil
	case "$ne":
		return m.Compare(value, arg) != 0, nil
	case "$lt":
		return m.Compare(value, arg) < 0, nil
	case "$lte":
		return m.Compare(value, arg) <= 0, nil
	case "$gt":
		return m.Compare(value, arg) > 0, nil
	case "$gte":
		return m.Compare(value, arg) >= 0, nil
	case "$in", "$nin":
		list, ok := arg.(ir.Array)
		if !ok {
			return false, fmt.Errorf("%s requires an array", op)
		}
		found := m.contains(list, value)
		if arr, isArr := value.(ir.Array); isArr && !found {
			for _, elem := range arr {
				if m.contains(list, elem) {
					found = true
					break
				}
			}
		}
		return found == (op == "$in"), nil
	case "$type":
		want, ok := arg.(ir.String)
		if !ok {
			return false, fmt.Errorf("$type requires a string")
		}
		return TypeName(value) == string(want), nil
	case "$size":
		n, ok := arg.(ir.Int)
		if !ok {
			return false, fmt.Errorf("$size requires an integer")
		}
		arr, isArr := value.(ir.Array)
		return isArr && len(arr) == int(n), nil
	case "$all":
		want, ok := arg.(ir.Array)
		if !ok {
			return false, fmt.Errorf("$all requires an array")
		}
		arr, isArr := value.(ir.Array)
		if !isArr {
			return false, nil
		}
		for _, w := range want {
			if !m.contains(arr, w) {
				return false, nil
			}
		}
		return true, nil
	case "$elemMatch", "$allMatch":
		sub, ok := arg.(ir.Object)
		if !ok {
			return false, fmt.Errorf("%s requires a selector", op)
		}
		arr, isArr := value.(ir.Array)
		if !isArr || len(arr) == 0 {
			return false, nil
		}
		for _, elem := range arr {
			ok, err := m.matchSelector(sub, elem)
			if err != nil {
				return false, err
			}
			if op == "$elemMatch" && ok {
				return true, nil
			}
			if op == "$allMatch" && !ok {
				return false, nil
			}
		}
		return op == "$allMatch", nil
	case "$regex":
		pattern, ok := arg.(ir.String)
		if !ok {
			return false, fmt.Errorf("$regex requires a string")
		}
		re, err := regexp.Compile(string(pattern))
		if err != nil {
			return false, fmt.Errorf("$regex: %w", err)
		}
		s, isStr := value.(ir.String)
		return isStr && re.MatchString(string(s)), nil
	case "$mod":
		args, ok := arg.(ir.Array)
		if !ok || len(args) != 2 {
			return false, fmt.Errorf("$mod requires [divisor, remainder]")
		}
		divisor, ok1 := args[0].(ir.Int)
		remainder, ok2 := args[1].(ir.Int)
		if !ok1 || !ok2 || divisor == 0 {
			return false, fmt.Errorf("$mod requires a non-zero integer divisor and an integer remainder")
		}
		n, isInt := value.(ir.Int)
		return isInt && n%divisor == remainder, nil
	default:
		return false, fmt.Errorf("unsupported operator %s", op)
	}
}

func (m *Matcher) contains(list ir.Array, v ir.Value) bool {
	for _, elem := range list {
		if m.Compare(elem, v) == 0 {
			return true
		}
	}
	return false
}

// lookup resolves a selector field path inside v.
func lookup(v ir.Value, path string) (ir.Value, bool) {
	cur := v
	for _, part := range SplitField(path) {
		obj, ok := cur.(ir.Object)
		if !ok {
			return nil, false
		}
		next, ok := obj[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Lookup resolves a selector field path inside a document.
func Lookup(doc ir.Object, path string) (ir.Value, bool) {
	return lookup(doc, path)
}

// TypeName names the JSON type of v as $type expects.
func TypeName(v ir.Value) string {
	switch v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.Bool:
		return "boolean"
	case ir.Int, ir.Float:
		return "number"
	case ir.String:
		return "string"
	case ir.Array:
		return "array"
	default:
		return "object"
	}
}

func rank(v ir.Value) int {
	switch val := v.(type) {
	case nil, ir.Null:
		return 0
	case ir.Bool:
		if val {
			return 2
		}
		return 1
	case ir.Int, ir.Float:
		return 3
	case ir.String:
		return 4
	case ir.Array:
		return 5
	default:
		return 6
	}
}

// Compare orders two values by collation. Strings equal under the
// collator fall back to code point order, so only identical strings
// compare equal.
func (m *Matcher) Compare(a, b ir.Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case ir.Int:
		if bv, ok := b.(ir.Int); ok {
			return cmp.Compare(av, bv)
		}
		return compareFloat(float64(av), b)
	case ir.Float:
		return compareFloat(float64(av), b)
	case ir.String:
		bv := b.(ir.String)
		if c := m.coll.CompareString(string(av), string(bv)); c != 0 {
			return c
		}
		return strings.Compare(string(av), string(bv))
	case ir.Array:
		bv := b.(ir.Array)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := m.Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	case ir.Object:
		bv := b.(ir.Object)
		ak, bk := av.SortedKeys(), bv.SortedKeys()
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := m.coll.CompareString(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := m.Compare(av[ak[i]], bv[bk[i]]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ak), len(bk))
	default:
		return 0
	}
}

func compareFloat(a float64, b ir.Value) int {
	bf, _ := ir.Number(b)
	return cmp.Compare(a, bf)
}
