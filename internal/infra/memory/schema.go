package memory

import memdb "github.com/hashicorp/go-memdb"

const (
	tableOrders     = "orders"
	tableOrderItems = "order_items"
	tablePayments   = "payments"
	tableProducts   = "products"
	tableCustomers  = "customers"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableOrders: {
				Name: tableOrders,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"order_number": {
						Name:    "order_number",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "OrderNumber"},
					},
					"customer_id": {
						Name:    "customer_id",
						Indexer: &memdb.StringFieldIndex{Field: "CustomerID"},
					},
				},
			},
			tableOrderItems: {
				Name: tableOrderItems,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"order_id": {
						Name:    "order_id",
						Indexer: &memdb.StringFieldIndex{Field: "OrderID"},
					},
					"product_id": {
						Name:    "product_id",
						Indexer: &memdb.StringFieldIndex{Field: "ProductID"},
					},
				},
			},
			tablePayments: {
				Name: tablePayments,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"order_id": {
						Name:    "order_id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "OrderID"},
					},
				},
			},
			tableProducts: {
				Name: tableProducts,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			tableCustomers: {
				Name: tableCustomers,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}
