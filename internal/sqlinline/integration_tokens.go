package sqlinline

// Integration tokens hold secrets that binaries may load instead of reading
// them from the environment, such as the ledger signer key.

const QSelectIntegrationToken = `--sql 9678217e-8b37-4254-b01e-758be0df5280
select token
from integration_tokens
where provider = $1::text and token <> ''
limit 1;
`

const QUpsertIntegrationToken = `--sql ea50835b-c2e4-4a8c-a58f-388c51cec5fc
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
