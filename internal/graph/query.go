package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// parsedQuery is the result of parsing one of the two supported
// Cypher-like shapes; run executes it against a Store.
type parsedQuery struct {
	// single-node shape: MATCH (n {prop:'val'}) RETURN n
	singleProp string
	singleVal  string
	returnVar  string

	// one-hop shape: MATCH (a)-[:REL]->(b {prop:'val'}) RETURN a|b
	relType    string
	hopProp    string
	hopVal     string
	returnSide string // "source" or "target"
}

var singleNodeRe = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w+)\s*\{\s*(\w+)\s*:\s*'([^']*)'\s*\}\s*\)\s*RETURN\s+(\w+)(?:\.\w+)?(?:\s+ORDER\s+BY\s+[\w.]+)?\s*$`)
var oneHopRe = regexp.MustCompile(`(?i)^MATCH\s*\(\s*(\w+)\s*\)\s*-\[\s*:\s*(\w+)\s*\]->\s*\(\s*(\w+)\s*\{\s*(\w+)\s*:\s*'([^']*)'\s*\}\s*\)\s*RETURN\s+(\w+)\s*$`)

func parseQuery(cypher string) (*parsedQuery, error) {
	cypher = strings.TrimSpace(cypher)

	if m := oneHopRe.FindStringSubmatch(cypher); m != nil {
		side, target := m[1], m[3]
		returnVar := m[6]
		resolvedSide := ""
		switch returnVar {
		case side:
			resolvedSide = "source"
		case target:
			resolvedSide = "target"
		default:
			return nil, fmt.Errorf("RETURN variable %q does not match either bound node", returnVar)
		}
		return &parsedQuery{
			relType:    strings.ToUpper(m[2]),
			hopProp:    m[4],
			hopVal:     m[5],
			returnSide: resolvedSide,
		}, nil
	}

	if m := singleNodeRe.FindStringSubmatch(cypher); m != nil {
		return &parsedQuery{
			singleProp: m[2],
			singleVal:  m[3],
			returnVar:  m[1],
		}, nil
	}

	return nil, fmt.Errorf("unsupported query shape: only single-node property match and one-hop directed traversal are implemented")
}

func (q *parsedQuery) run(s *Store) ([]Node, error) {
	if q.relType != "" {
		var col string
		var joinOn string
		switch q.returnSide {
		case "source":
			col = "source_id"
			joinOn = "n.id = e.source_id"
		case "target":
			col = "target_id"
			joinOn = "n.id = e.target_id"
		}
		other := "target_id"
		if col == "target_id" {
			other = "source_id"
		}
		query := fmt.Sprintf(`
SELECT %s FROM nodes n
JOIN edges e ON %s
WHERE e.rel_type = ? AND e.%s IN (SELECT id FROM nodes WHERE %s = ?)`,
			prefixCols("n"), joinOn, other, q.hopProp)
		rows, err := s.db.Query(query, q.relType, q.hopVal)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectNodes(rows)
	}

	query := fmt.Sprintf(`SELECT %s FROM nodes WHERE %s = ?`, selectNodeCols, q.singleProp)
	rows, err := s.db.Query(query, q.singleVal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}
