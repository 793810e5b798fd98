package sqlinline

const QInsertCampaignTransaction = `--sql 642d2274-ae6c-400c-b774-4b379dffda31
insert into campaign_transactions (campaign_id, notification_id, actor, kind, amount, occurred_at)
values (lower($1::text), $2::text, $3::text, $4::text, nullif($5::text, '')::numeric, to_timestamp($6::bigint))
on conflict (campaign_id, notification_id) do nothing;
`

const QCountCampaignTransactions = `--sql a658a2ef-d67f-4bfe-9135-4bc3db450aff
select count(*)
from campaign_transactions
where campaign_id = lower($1::text);
`
