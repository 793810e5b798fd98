package sqlinline

const QCreateCampaignsTable = `--sql 43f03842-6813-4590-bda4-2c587fed6d87
create table if not exists campaigns (
    id text primary key,
    name text not null,
    owner text not null,
    total_donations numeric(78, 0) not null default 0,
    balance numeric(78, 0) not null default 0,
    created_at timestamptz not null default now(),
    synced_at timestamptz not null default now()
);
`

const QCreateCampaignTransactionsTable = `--sql 9b10a7c4-9097-49b8-8676-625ae393cc5d
create table if not exists campaign_transactions (
    campaign_id text not null references campaigns (id),
    notification_id text not null,
    actor text not null,
    kind text not null,
    amount numeric(78, 0),
    occurred_at timestamptz not null,
    inserted_at timestamptz not null default now(),
    primary key (campaign_id, notification_id)
);
`

const QCreateCampaignTransactionsIndex = `--sql 4a3397fa-26fd-469b-9a1c-d512900d9fcf
create index if not exists campaign_transactions_occurred_at_idx
    on campaign_transactions (campaign_id, occurred_at desc);
`

const QCreateIntegrationTokensTable = `--sql 6cca80a9-f83d-4415-be98-c554a8deb749
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

// SchemaStatements lists the mirror DDL in dependency order.
var SchemaStatements = []string{
	QCreateCampaignsTable,
	QCreateCampaignTransactionsTable,
	QCreateCampaignTransactionsIndex,
	QCreateIntegrationTokensTable,
}
