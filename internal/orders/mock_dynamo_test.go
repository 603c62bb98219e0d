package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory stand-in supporting GetItem, PutItem,
// UpdateItem and TransactWriteItems with just enough condition and update
// expression emulation for the store's access patterns. Items are stored per
// table in a nested map: table -> joined key -> item map.
type mockDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	keyAttrs map[string][]string

	// transactErr simulates a mid-transaction fault: the call fails and
	// nothing is applied.
	transactErr error

	transactCalls int
	updateCalls   int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
		keyAttrs: map[string][]string{
			"orders":       {"order_id"},
			"line-items":   {"order_id", "line_item_id"},
			"payment-refs": {"intent_id"},
		},
	}
}

func (m *mockDynamo) ensureTable(name string) map[string]map[string]types.AttributeValue {
	if m.tables[name] == nil {
		m.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[name]
}

// keyOf joins the table's key attribute values with "|".
func (m *mockDynamo) keyOf(table string, attrs map[string]types.AttributeValue) string {
	parts := make([]string, 0, 2)
	for _, ka := range m.keyAttrs[table] {
		if av, ok := attrs[ka].(*types.AttributeValueMemberS); ok {
			parts = append(parts, av.Value)
		}
	}
	return strings.Join(parts, "|")
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl := m.ensureTable(*params.TableName)
	item, ok := tbl[m.keyOf(*params.TableName, params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	tbl := m.ensureTable(*params.TableName)
	tbl[m.keyOf(*params.TableName, params.Item)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	table := *params.TableName
	tbl := m.ensureTable(table)
	k := m.keyOf(table, params.Key)
	item, ok := tbl[k]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.Contains(cond, "attribute_exists(order_id)") && !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(cond, "#s <> :new") && ok {
			current, _ := item["status"].(*types.AttributeValueMemberS)
			next, _ := params.ExpressionAttributeValues[":new"].(*types.AttributeValueMemberS)
			if current != nil && next != nil && current.Value == next.Value {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !ok {
		return nil, errors.New("item not found")
	}

	applyValues(item, params.ExpressionAttributeValues)
	tbl[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++

	if m.transactErr != nil {
		return nil, m.transactErr
	}

	// validate all conditions before applying anything
	for _, ti := range params.TransactItems {
		if p := ti.Put; p != nil && p.ConditionExpression != nil && strings.Contains(*p.ConditionExpression, "attribute_not_exists") {
			tbl := m.ensureTable(*p.TableName)
			if _, exists := tbl[m.keyOf(*p.TableName, p.Item)]; exists {
				return nil, &types.TransactionCanceledException{
					CancellationReasons: []types.CancellationReason{{Code: strPtr("ConditionalCheckFailed")}},
				}
			}
		}
		if u := ti.Update; u != nil && u.ConditionExpression != nil && strings.Contains(*u.ConditionExpression, "attribute_exists(order_id)") {
			tbl := m.ensureTable(*u.TableName)
			if _, exists := tbl[m.keyOf(*u.TableName, u.Key)]; !exists {
				return nil, &types.TransactionCanceledException{
					CancellationReasons: []types.CancellationReason{{Code: strPtr("ConditionalCheckFailed")}},
				}
			}
		}
	}

	for _, ti := range params.TransactItems {
		if p := ti.Put; p != nil {
			tbl := m.ensureTable(*p.TableName)
			tbl[m.keyOf(*p.TableName, p.Item)] = p.Item
		}
		if u := ti.Update; u != nil {
			tbl := m.ensureTable(*u.TableName)
			k := m.keyOf(*u.TableName, u.Key)
			applyValues(tbl[k], u.ExpressionAttributeValues)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// applyValues maps the store's value placeholders onto attributes. Naive on
// purpose: it mirrors the fixed update expressions the store issues.
func applyValues(item map[string]types.AttributeValue, values map[string]types.AttributeValue) {
	if item == nil {
		return
	}
	for k, v := range values {
		switch k {
		case ":new", ":s":
			item["status"] = v
		case ":ua":
			item["updated_at"] = v
		case ":pa":
			if pay, ok := item["payment"].(*types.AttributeValueMemberM); ok {
				pay.Value["paid_at"] = v
			}
		case ":h":
			appendList(item, "status_history", v)
		case ":ev":
			appendList(item, "fulfillment_events", v)
		case ":rs":
			item["render_status"] = v
		case ":spec":
			item["render_spec"] = v
		case ":sa":
			item["render_safe_area"] = v
		case ":src":
			item["render_source"] = v
		case ":do":
			item["design_owner"] = v
		case ":cs":
			item["design_checksum"] = v
		case ":err":
			item["render_error"] = v
		case ":loc":
			item["asset_location"] = v
		case ":fs":
			item["fulfillment_status"] = v
		}
	}
}

func appendList(item map[string]types.AttributeValue, attr string, v types.AttributeValue) {
	add, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return
	}
	lst, _ := item[attr].(*types.AttributeValueMemberL)
	if lst == nil {
		lst = &types.AttributeValueMemberL{}
	}
	lst.Value = append(lst.Value, add.Value...)
	item[attr] = lst
}

func strPtr(s string) *string { return &s }
