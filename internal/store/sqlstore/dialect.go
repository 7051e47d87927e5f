package sqlstore

import (
	"strconv"
	"strings"
)

type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered    bool
	tableExists string
	schema      string
	// upgrades[i] moves a database from version i+1 to i+2.
	upgrades []string
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sqliteDialect = dialect{
	name:        "sqlite",
	tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	schema: `
CREATE TABLE schema_version (version INTEGER NOT NULL);

CREATE TABLE contracts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    contract_id TEXT NOT NULL UNIQUE,
    status TEXT,
    organization_type TEXT,
    ministry TEXT,
    department TEXT,
    organization_name TEXT,
    office_zone TEXT,
    location TEXT,
    buyer_designation TEXT,
    buying_mode TEXT,
    bid_number TEXT,
    contract_date TEXT,
    total REAL,
    items TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX idx_contracts_contract_date ON contracts(contract_date);

CREATE TABLE sellers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    contract_no TEXT NOT NULL UNIQUE,
    generated_date TEXT,
    category_name TEXT,
    seller_id TEXT,
    company_name TEXT,
    contact_no TEXT,
    email TEXT,
    address TEXT,
    msme_reg_no TEXT,
    gstin TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX idx_sellers_category ON sellers(lower(category_name));
`+sqliteBrands,
	upgrades: []string{sqliteBrands},
}

const sqliteBrands = `
CREATE TABLE brands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    product_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

const postgresBrands = `
CREATE TABLE brands (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    product_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

var postgresDialect = dialect{
	name:        "postgres",
	numbered:    true,
	tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
	schema: `
CREATE TABLE schema_version (version INTEGER NOT NULL);

CREATE TABLE contracts (
    id BIGSERIAL PRIMARY KEY,
    contract_id TEXT NOT NULL UNIQUE,
    status TEXT,
    organization_type TEXT,
    ministry TEXT,
    department TEXT,
    organization_name TEXT,
    office_zone TEXT,
    location TEXT,
    buyer_designation TEXT,
    buying_mode TEXT,
    bid_number TEXT,
    contract_date TEXT,
    total DOUBLE PRECISION,
    items JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX idx_contracts_contract_date ON contracts(contract_date);

CREATE TABLE sellers (
    id BIGSERIAL PRIMARY KEY,
    contract_no TEXT NOT NULL UNIQUE,
    generated_date TEXT,
    category_name TEXT,
    seller_id TEXT,
    company_name TEXT,
    contact_no TEXT,
    email TEXT,
    address TEXT,
    msme_reg_no TEXT,
    gstin TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX idx_sellers_category ON sellers(lower(category_name));
`+postgresBrands,
	upgrades: []string{postgresBrands},
}
