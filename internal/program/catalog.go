package program

// TypeCatalog is the set of block types the rendering surface knows how to draw.
type TypeCatalog map[string]struct{}

// NewTypeCatalog builds a catalog from a list of block types.
func NewTypeCatalog(types ...string) TypeCatalog {
	c := make(TypeCatalog, len(types))
	for _, t := range types {
		c[t] = struct{}{}
	}
	return c
}

// Has reports whether a block type is known.
func (c TypeCatalog) Has(blockType string) bool {
	_, ok := c[blockType]
	return ok
}

// DefaultTypes returns the block types shipped with the trading toolbox.
func DefaultTypes() TypeCatalog {
	return NewTypeCatalog(
		"trade_definition",
		"trade_definition_market",
		"trade_definition_tradetype",
		"trade_definition_contracttype",
		"trade_definition_candleinterval",
		"trade_definition_restartbuysell",
		"trade_definition_restartonerror",
		"trade_definition_tradeoptions",
		"before_purchase",
		"purchase",
		"during_purchase",
		"after_purchase",
		"trade_again",
		"contract_check_result",
		"read_details",
		"math_number",
		"math_arithmetic",
		"logic_compare",
		"logic_boolean",
		"controls_if",
		"text",
		"notify",
		"variables_set",
		"variables_get",
		"procedures_callnoreturn",
	)
}

// BlankDocument is the program a new workspace starts from.
const BlankDocument = `<xml>
  <block type="trade_definition" id="trade_definition">
    <value name="MARKET"><block type="trade_definition_market" id="trade_definition_market">
      <field name="MARKET_LIST">synthetic_index</field>
      <field name="SUBMARKET_LIST">random_index</field>
      <field name="SYMBOL_LIST">1HZ100V</field>
    </block></value>
    <value name="TRADETYPE"><block type="trade_definition_tradetype" id="trade_definition_tradetype">
      <field name="TRADETYPECAT_LIST">callput</field>
      <field name="TRADETYPE_LIST">callput</field>
    </block></value>
  </block>
  <block type="before_purchase" id="before_purchase">
    <value name="BEFOREPURCHASE_STACK"><block type="purchase" id="purchase">
      <field name="PURCHASE_LIST">CALL</field>
    </block></value>
  </block>
  <block type="after_purchase" id="after_purchase">
    <value name="AFTERPURCHASE_STACK"><block type="trade_again" id="trade_again"></block></value>
  </block>
</xml>`
