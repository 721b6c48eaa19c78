// Package queryparse parses the query language into a queryir tree.
//
// Two entry points exist:
//   - ParseFile parses a query file holding named query blocks
//   - ParseSelect parses a single select statement, as used for
//     queries built at runtime
//
// A query file looks like:
//
//	query CarsByColour {
//	    description: "Cars of one colour"
//	    statement:
//	        SELECT org.acme.Car
//	            WHERE (colour == _$colour)
//	            ORDER BY [mileage DESC]
//	            LIMIT _$limit
//	}
//
// Keywords are case-sensitive and upper case inside statements. Errors
// are returned as *SyntaxError carrying file, line and column.
package queryparse
